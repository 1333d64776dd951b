package install_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiryolinux/koushou/internal/install"
	"github.com/seiryolinux/koushou/internal/pkgbuild"
	"github.com/seiryolinux/koushou/internal/pkgdb"
)

func TestLocalInstallsIntoRootAndRecordsDB(t *testing.T) {
	pkgDir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(pkgDir))
	kpkgPath, err := pkgbuild.Build(pkgDir)
	require.NoError(t, err)

	root := t.TempDir()
	require.NoError(t, install.Local(kpkgPath, root))

	installedScript := filepath.Join(root, "usr", "bin", "hello")
	_, err = os.Stat(installedScript)
	require.NoError(t, err)

	db, err := pkgdb.LoadOrEmpty(pkgdb.Path(root))
	require.NoError(t, err)
	pkg, err := db.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, "0.1", pkg.Version)
	assert.Contains(t, pkg.Files, "usr/bin/hello")
}

func TestLocalRejectsNonDirectoryRoot(t *testing.T) {
	pkgDir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(pkgDir))
	kpkgPath, err := pkgbuild.Build(pkgDir)
	require.NoError(t, err)

	notADir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))

	err = install.Local(kpkgPath, notADir)
	assert.Equal(t, install.InvalidRootError{Root: notADir}, err)
}

func TestLocalHandlesEmptyFilesPayload(t *testing.T) {
	pkgDir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, pkgbuild.Generate(pkgDir))
	require.NoError(t, os.RemoveAll(filepath.Join(pkgDir, "files")))
	require.NoError(t, os.MkdirAll(filepath.Join(pkgDir, "files"), 0o755))

	kpkgPath, err := pkgbuild.Build(pkgDir)
	require.NoError(t, err)

	root := t.TempDir()
	require.NoError(t, install.Local(kpkgPath, root))

	db, err := pkgdb.LoadOrEmpty(pkgdb.Path(root))
	require.NoError(t, err)
	pkg, err := db.Get("empty")
	require.NoError(t, err)
	assert.Empty(t, pkg.Files)
}
