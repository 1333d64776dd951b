package resolve_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seiryolinux/koushou/internal/resolve"
	"github.com/seiryolinux/koushou/internal/universe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildUniverse round-trips a TOML repo database through universe.Load,
// since Universe has no exported insertion path outside of that.
func buildUniverse(t *testing.T, toml string) *universe.Universe {
	t.Helper()
	root := t.TempDir()
	dir := universe.CacheDir(root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.db"), []byte(toml), 0o644))
	u, err := universe.Load(root)
	require.NoError(t, err)
	return u
}

func TestResolveSimpleChain(t *testing.T) {
	u := buildUniverse(t, `
[packages.a]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "a-1.0.kpkg"
sha256 = "aa"
depends = ["b"]

[packages.b]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "b-1.0.kpkg"
sha256 = "bb"
`)

	sol, err := resolve.Resolve(u, []string{"a"}, "glibc-systemd", "x86_64", nil)
	require.NoError(t, err)
	assert.Contains(t, sol.Selections, "a")
	assert.Contains(t, sol.Selections, "b")
}

func TestResolveMissingPackage(t *testing.T) {
	u := buildUniverse(t, `
[packages.a]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "a-1.0.kpkg"
sha256 = "aa"
depends = ["missing"]
`)

	_, err := resolve.Resolve(u, []string{"a"}, "glibc-systemd", "x86_64", nil)
	assert.Equal(t, resolve.PackageNotFoundError{Name: "missing"}, err)
}

func TestResolveCircularDependency(t *testing.T) {
	u := buildUniverse(t, `
[packages.a]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "a.kpkg"
sha256 = "aa"
depends = ["b"]

[packages.b]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "b.kpkg"
sha256 = "bb"
depends = ["a"]
`)

	_, err := resolve.Resolve(u, []string{"a"}, "glibc-systemd", "x86_64", nil)
	require.Error(t, err)
	var cycleErr resolve.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, []string{"a", "b"}, cycleErr.Name)
}

func TestResolveFlavorIsolation(t *testing.T) {
	u := buildUniverse(t, `
[packages.x]
version = "1.0"
arch = "x86_64"
flavor = "musl"
filename = "x.kpkg"
sha256 = "aa"
`)

	_, err := resolve.Resolve(u, []string{"x"}, "glibc-systemd", "x86_64", nil)
	assert.Equal(t, resolve.PackageNotFoundError{Name: "x"}, err)
}

func TestResolveDiamondDependency(t *testing.T) {
	u := buildUniverse(t, `
[packages.top]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "top.kpkg"
sha256 = "aa"
depends = ["left", "right"]

[packages.left]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "left.kpkg"
sha256 = "bb"
depends = ["shared"]

[packages.right]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "right.kpkg"
sha256 = "cc"
depends = ["shared"]

[packages.shared]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "shared.kpkg"
sha256 = "dd"
`)

	sol, err := resolve.Resolve(u, []string{"top"}, "glibc-systemd", "x86_64", nil)
	require.NoError(t, err)
	assert.Len(t, sol.Selections, 4)
}

func TestResolveDeterministic(t *testing.T) {
	toml := `
[packages.a]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "a.kpkg"
sha256 = "aa"
`
	u1 := buildUniverse(t, toml)
	u2 := buildUniverse(t, toml)

	sol1, err := resolve.Resolve(u1, []string{"a"}, "glibc-systemd", "x86_64", nil)
	require.NoError(t, err)
	sol2, err := resolve.Resolve(u2, []string{"a"}, "glibc-systemd", "x86_64", nil)
	require.NoError(t, err)
	assert.Equal(t, sol1.Selections["a"].Version, sol2.Selections["a"].Version)
}

func TestParseDependency(t *testing.T) {
	cases := []struct {
		raw       string
		name      string
		predicate resolve.Predicate
		version   string
	}{
		{"bash", "bash", resolve.Any, ""},
		{"glibc>=2.38", "glibc", resolve.AtLeast, "2.38"},
		{"x=1.0", "x", resolve.Exact, "1.0"},
		{"y<2.0", "y", resolve.Below, "2.0"},
	}
	for _, c := range cases {
		dep := resolve.ParseDependency(c.raw)
		assert.Equal(t, c.name, dep.Name)
		assert.Equal(t, c.predicate, dep.Predicate)
		assert.Equal(t, c.version, dep.Version)
	}
}
