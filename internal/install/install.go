// Package install unpacks a .kpkg archive onto a target root and records
// it in the installed-package database (spec.md §4.8 C8), grounded on
// _examples/original_source/src/install.rs's install_local_package: unpack
// outer tar.gz to a staging dir, parse package.kdl, unpack files.tar.zst
// into a nested staging dir, then move each top-level staged entry onto
// root, replacing any existing file or directory in its way.
package install

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/seiryolinux/koushou/internal/klog"
	"github.com/seiryolinux/koushou/internal/manifest"
	"github.com/seiryolinux/koushou/internal/pkgdb"
)

// InvalidRootError is returned when root is not a directory.
type InvalidRootError struct{ Root string }

func (e InvalidRootError) Error() string { return fmt.Sprintf("target root is not a directory: %s", e.Root) }

// MissingFilesTarError is returned when a .kpkg archive has no files.tar.zst member.
type MissingFilesTarError struct{ Path string }

func (e MissingFilesTarError) Error() string {
	return fmt.Sprintf("invalid package: %s is missing 'files.tar.zst'", e.Path)
}

// Local unpacks the .kpkg archive at kpkgPath onto root and records it as
// installed. root must already exist.
func Local(kpkgPath, root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return InvalidRootError{Root: root}
	}

	stageDir, err := os.MkdirTemp("", "koushou-install-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary staging directory")
	}
	defer func() { _ = os.RemoveAll(stageDir) }()

	if err := unpackGzipTar(kpkgPath, stageDir); err != nil {
		return errors.Wrapf(err, "unpacking %s", kpkgPath)
	}

	kdlPath := filepath.Join(stageDir, "package.kdl")
	kdlContent, err := os.ReadFile(kdlPath)
	if err != nil {
		return errors.Wrapf(err, "reading package.kdl from %s", kpkgPath)
	}
	pkg, err := manifest.Parse(string(kdlContent))
	if err != nil {
		return errors.Wrap(err, "parsing package.kdl")
	}

	filesTarPath := filepath.Join(stageDir, "files.tar.zst")
	if _, err := os.Stat(filesTarPath); err != nil {
		return MissingFilesTarError{Path: kpkgPath}
	}

	filesStageDir := filepath.Join(stageDir, "staging")
	if err := os.MkdirAll(filesStageDir, 0o755); err != nil {
		return errors.Wrap(err, "creating files staging directory")
	}
	if err := unpackZstdTar(filesTarPath, filesStageDir); err != nil {
		return errors.Wrapf(err, "unpacking files.tar.zst from %s", kpkgPath)
	}

	files, err := collectRegularFiles(filesStageDir)
	if err != nil {
		return err
	}

	if err := moveStagedEntriesOnto(filesStageDir, root); err != nil {
		return err
	}

	dbPath := pkgdb.Path(root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(dbPath))
	}
	db, err := pkgdb.LoadOrEmpty(dbPath)
	if err != nil {
		return errors.Wrapf(err, "loading %s", dbPath)
	}
	db.Add(pkgdb.InstalledPackage{
		Name:    pkg.Name,
		Version: pkg.Version,
		Arch:    pkg.Arch,
		Flavor:  pkg.Flavor,
		Depends: pkg.Depends,
		Files:   files,
	})
	if err := db.Save(dbPath); err != nil {
		return errors.Wrapf(err, "saving %s", dbPath)
	}

	klog.Info(klog.Install, "installed %s-%s (%s) into %s", pkg.Name, pkg.Version, pkg.Arch, root)
	return nil
}

func unpackGzipTar(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	return extractTar(tar.NewReader(gz), dest)
}

func unpackZstdTar(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	return extractTar(tar.NewReader(zr), dest)
}

func extractTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dest, hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return copyErr
			}
			if closeErr != nil {
				return closeErr
			}
		}
	}
}

func collectRegularFiles(stageDir string) ([]string, error) {
	var files []string
	err := filepath.Walk(stageDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(stageDir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking staged files")
	}
	return files, nil
}

// moveStagedEntriesOnto replaces each top-level entry under stageDir onto
// root, deleting whatever is already there in its way (spec.md §4.8: no
// merge, last install wins for conflicting paths).
func moveStagedEntriesOnto(stageDir, root string) error {
	entries, err := os.ReadDir(stageDir)
	if err != nil {
		return errors.Wrap(err, "reading staged entries")
	}

	for _, entry := range entries {
		src := filepath.Join(stageDir, entry.Name())
		dest := filepath.Join(root, entry.Name())

		if _, err := os.Lstat(dest); err == nil {
			if err := os.RemoveAll(dest); err != nil {
				return errors.Wrapf(err, "replacing existing %s", dest)
			}
		}

		if err := os.Rename(src, dest); err != nil {
			return errors.Wrapf(err, "moving %s to %s", src, dest)
		}
	}
	return nil
}
