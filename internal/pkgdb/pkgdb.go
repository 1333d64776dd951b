// Package pkgdb is the installed-state database (spec.md §3, §4.2): a
// persistent mapping from installed package name to its manifest and
// owned-file list, serialized as pretty-printed JSON.
package pkgdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// InstalledPackage is a single row of the installed-state database.
type InstalledPackage struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Arch    string   `json:"arch"`
	Flavor  string   `json:"flavor"`
	Depends []string `json:"depends"`
	// Files holds root-relative POSIX paths for regular-file entries
	// only; directories and symlinks are not tracked for removal.
	Files []string `json:"files"`
}

// NotFoundError is returned by Get/Remove when name isn't installed.
type NotFoundError struct{ Name string }

func (e NotFoundError) Error() string { return fmt.Sprintf("package not found: %s", e.Name) }

// Database is the in-memory form of the installed-state database.
type Database struct {
	Packages map[string]InstalledPackage `json:"packages"`
}

// New returns an empty database.
func New() *Database {
	return &Database{Packages: map[string]InstalledPackage{}}
}

// LoadOrEmpty reads the database at path. A missing file is not an error —
// it yields an empty database (spec.md §4.2).
func LoadOrEmpty(path string) (*Database, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading installed database %s", path)
	}

	var db Database
	if err := json.Unmarshal(content, &db); err != nil {
		return nil, errors.Wrapf(err, "parsing installed database %s", path)
	}
	if db.Packages == nil {
		db.Packages = map[string]InstalledPackage{}
	}
	return &db, nil
}

// Save serializes the full database and writes it to path, staging
// through a temp file in the same directory and renaming into place
// (spec.md §4.2 crash-safety SHOULD).
func (db *Database) Save(path string) error {
	content, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding installed database")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".db-*.json.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "writing installed database")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "closing installed database temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "renaming temp file onto %s", path)
	}
	return nil
}

// Add upserts pkg by name.
func (db *Database) Add(pkg InstalledPackage) {
	db.Packages[pkg.Name] = pkg
}

// Get returns the installed package named name.
func (db *Database) Get(name string) (InstalledPackage, error) {
	pkg, ok := db.Packages[name]
	if !ok {
		return InstalledPackage{}, NotFoundError{Name: name}
	}
	return pkg, nil
}

// Remove deletes and returns the installed package named name.
func (db *Database) Remove(name string) (InstalledPackage, error) {
	pkg, ok := db.Packages[name]
	if !ok {
		return InstalledPackage{}, NotFoundError{Name: name}
	}
	delete(db.Packages, name)
	return pkg, nil
}

// List returns every installed package, in no particular order.
func (db *Database) List() []InstalledPackage {
	out := make([]InstalledPackage, 0, len(db.Packages))
	for _, pkg := range db.Packages {
		out = append(out, pkg)
	}
	return out
}

// Contains reports whether name is installed.
func (db *Database) Contains(name string) bool {
	_, ok := db.Packages[name]
	return ok
}

// Path returns the installed-database path under root.
func Path(root string) string {
	return filepath.Join(root, "var", "lib", "koushou", "db.json")
}
