package remove_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiryolinux/koushou/internal/install"
	"github.com/seiryolinux/koushou/internal/pkgbuild"
	"github.com/seiryolinux/koushou/internal/pkgdb"
	"github.com/seiryolinux/koushou/internal/remove"
)

func installFixture(t *testing.T) (root string) {
	t.Helper()
	pkgDir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(pkgDir))
	kpkgPath, err := pkgbuild.Build(pkgDir)
	require.NoError(t, err)

	root = t.TempDir()
	require.NoError(t, install.Local(kpkgPath, root))
	return root
}

func TestPackageRemovesFilesAndRecord(t *testing.T) {
	root := installFixture(t)
	scriptPath := filepath.Join(root, "usr", "bin", "hello")
	_, err := os.Stat(scriptPath)
	require.NoError(t, err)

	require.NoError(t, remove.Package(root, "hello"))

	_, err = os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(err))

	// The containing directory is left behind.
	_, err = os.Stat(filepath.Join(root, "usr", "bin"))
	assert.NoError(t, err)

	db, err := pkgdb.LoadOrEmpty(pkgdb.Path(root))
	require.NoError(t, err)
	assert.False(t, db.Contains("hello"))
}

func TestPackageNotInstalled(t *testing.T) {
	root := t.TempDir()
	err := remove.Package(root, "ghost")
	assert.Equal(t, remove.NotInstalledError{Name: "ghost"}, err)
}

func TestPackageToleratesMissingFile(t *testing.T) {
	root := installFixture(t)
	require.NoError(t, os.Remove(filepath.Join(root, "usr", "bin", "hello")))

	require.NoError(t, remove.Package(root, "hello"))
}
