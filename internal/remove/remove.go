// Package remove uninstalls a package by deleting its recorded files and
// dropping it from the installed-state database (spec.md §4.9 C9),
// grounded on _examples/original_source/src/removal.rs's remove_package:
// files are deleted in reverse record order, missing files are tolerated,
// and directories are deliberately left behind.
package remove

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/seiryolinux/koushou/internal/klog"
	"github.com/seiryolinux/koushou/internal/pkgdb"
)

// NotInstalledError is returned when name has no entry in the installed database.
type NotInstalledError struct{ Name string }

func (e NotInstalledError) Error() string { return fmt.Sprintf("package not installed: %s", e.Name) }

// Package removes name's recorded files from root and updates the
// installed database. Directories are never removed — only the regular
// files pkgdb recorded at install time.
func Package(root, name string) error {
	dbPath := pkgdb.Path(root)
	if _, err := os.Stat(dbPath); err != nil {
		return NotInstalledError{Name: name}
	}

	db, err := pkgdb.LoadOrEmpty(dbPath)
	if err != nil {
		return errors.Wrapf(err, "loading %s", dbPath)
	}

	pkg, err := db.Remove(name)
	if err != nil {
		return NotInstalledError{Name: name}
	}

	for i := len(pkg.Files) - 1; i >= 0; i-- {
		abs := filepath.Join(root, pkg.Files[i])
		if _, statErr := os.Lstat(abs); statErr != nil {
			continue
		}
		if err := os.Remove(abs); err != nil {
			return errors.Wrapf(err, "removing %s", abs)
		}
	}

	if err := db.Save(dbPath); err != nil {
		return errors.Wrapf(err, "saving %s", dbPath)
	}

	klog.Info(klog.Remove, "removed %s from %s", name, root)
	return nil
}
