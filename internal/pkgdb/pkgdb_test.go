package pkgdb_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seiryolinux/koushou/internal/pkgdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrEmptyMissingFile(t *testing.T) {
	db, err := pkgdb.LoadOrEmpty(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	assert.Empty(t, db.List())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "db.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	db := pkgdb.New()
	db.Add(pkgdb.InstalledPackage{
		Name: "bash", Version: "5.2", Arch: "x86_64", Flavor: "glibc-systemd",
		Depends: []string{"glibc"}, Files: []string{"usr/bin/bash"},
	})
	require.NoError(t, db.Save(path))

	loaded, err := pkgdb.LoadOrEmpty(path)
	require.NoError(t, err)
	pkg, err := loaded.Get("bash")
	require.NoError(t, err)
	assert.Equal(t, "5.2", pkg.Version)
}

func TestGetRemoveNotFound(t *testing.T) {
	db := pkgdb.New()
	_, err := db.Get("missing")
	assert.Equal(t, pkgdb.NotFoundError{Name: "missing"}, err)

	_, err = db.Remove("missing")
	assert.Equal(t, pkgdb.NotFoundError{Name: "missing"}, err)
}

func TestAddUpsertsByName(t *testing.T) {
	db := pkgdb.New()
	db.Add(pkgdb.InstalledPackage{Name: "foo", Version: "1.0"})
	db.Add(pkgdb.InstalledPackage{Name: "foo", Version: "2.0"})
	pkg, err := db.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, "2.0", pkg.Version)
	assert.Len(t, db.List(), 1)
}
