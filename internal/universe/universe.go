// Package universe is the in-memory index of every package known across
// the cached repository databases (spec.md §3 PackageUniverse, §4.3).
package universe

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // optional alternative repo-db reader, see SPEC_FULL.md §4.3
)

// RepoOrder is repository tie-break precedence, highest first (spec.md §4.4).
var RepoOrder = []string{"core", "main", "extra"}

// PackageID is the identity of a specific build (spec.md §3).
type PackageID struct {
	Name    string
	Version string
	Arch    string
	Flavor  string
}

// Entry is one row of a repository database, tagged with the repo it was
// loaded from so a download URL can be constructed later.
type Entry struct {
	PackageID
	Filename string
	SHA256   string
	Depends  []string
	Repo     string
}

type key struct {
	Name, Arch, Flavor string
}

// Universe is the read-only union of all loaded repository databases.
type Universe struct {
	entries map[key][]Entry
}

// New returns an empty universe.
func New() *Universe {
	return &Universe{entries: map[key][]Entry{}}
}

func (u *Universe) insert(e Entry) {
	k := key{Name: e.Name, Arch: e.Arch, Flavor: e.Flavor}
	u.entries[k] = append(u.entries[k], e)
}

// Candidates returns every entry matching (name, arch, flavor), in the
// order they were loaded (repository precedence order, since Load walks
// RepoOrder).
func (u *Universe) Candidates(name, arch, flavor string) []Entry {
	return u.entries[key{Name: name, Arch: arch, Flavor: flavor}]
}

// CacheDir returns the on-disk repo cache directory under root.
func CacheDir(root string) string {
	return filepath.Join(root, "var", "cache", "koushou", "repos")
}

// Load scans root's repo cache directory for the known repository names
// and builds a universe from whichever are present. TOML (.db) is the
// primary schema; a SQLite sibling (.db.sqlite) is read when a TOML file
// isn't present for that repo (spec.md §4.3).
func Load(root string) (*Universe, error) {
	u := New()
	dir := CacheDir(root)

	for _, repo := range RepoOrder {
		tomlPath := filepath.Join(dir, repo+".db")
		sqlitePath := filepath.Join(dir, repo+".db.sqlite")

		switch {
		case fileExists(tomlPath):
			if err := loadTOML(u, tomlPath, repo); err != nil {
				return nil, err
			}
		case fileExists(sqlitePath):
			if err := loadSQLite(u, sqlitePath, repo); err != nil {
				return nil, err
			}
		default:
			continue
		}
	}

	return u, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type tomlPackage struct {
	Version  string   `toml:"version"`
	Arch     string   `toml:"arch"`
	Flavor   string   `toml:"flavor"`
	Filename string   `toml:"filename"`
	SHA256   string   `toml:"sha256"`
	Depends  []string `toml:"depends"`
}

type tomlDatabase struct {
	Packages map[string]tomlPackage `toml:"packages"`
}

func loadTOML(u *Universe, path, repo string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading repo database %s", path)
	}

	var db tomlDatabase
	if _, err := toml.Decode(string(content), &db); err != nil {
		return errors.Wrapf(err, "parsing repo database %s", path)
	}

	for name, pkg := range db.Packages {
		u.insert(Entry{
			PackageID: PackageID{Name: name, Version: pkg.Version, Arch: pkg.Arch, Flavor: pkg.Flavor},
			Filename:  pkg.Filename,
			SHA256:    strings.ToLower(pkg.SHA256),
			Depends:   pkg.Depends,
			Repo:      repo,
		})
	}
	return nil
}

func loadSQLite(u *Universe, path, repo string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "opening repo database %s", path)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT name, version, arch, flavor, filename, sha256 FROM packages`)
	if err != nil {
		return errors.Wrapf(err, "querying repo database %s", path)
	}
	defer func() { _ = rows.Close() }()

	entries := map[string]*Entry{}
	for rows.Next() {
		var name, version, arch, flavor, filename, sha256 string
		if err := rows.Scan(&name, &version, &arch, &flavor, &filename, &sha256); err != nil {
			return errors.Wrapf(err, "scanning repo database %s", path)
		}
		entries[name] = &Entry{
			PackageID: PackageID{Name: name, Version: version, Arch: arch, Flavor: flavor},
			Filename:  filename,
			SHA256:    strings.ToLower(sha256),
			Repo:      repo,
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "reading repo database %s", path)
	}

	depRows, err := db.Query(`SELECT package_name, dep_name, dep_predicate FROM dependencies`)
	if err != nil {
		return errors.Wrapf(err, "querying dependencies in %s", path)
	}
	defer func() { _ = depRows.Close() }()

	for depRows.Next() {
		var pkgName, depName string
		var predicate sql.NullString
		if err := depRows.Scan(&pkgName, &depName, &predicate); err != nil {
			return errors.Wrapf(err, "scanning dependencies in %s", path)
		}
		if e, ok := entries[pkgName]; ok {
			raw := depName
			if predicate.Valid {
				raw += predicate.String
			}
			e.Depends = append(e.Depends, raw)
		}
	}
	if err := depRows.Err(); err != nil {
		return errors.Wrapf(err, "reading dependencies in %s", path)
	}

	for _, e := range entries {
		u.insert(*e)
	}
	return nil
}
