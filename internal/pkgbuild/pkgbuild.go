// Package pkgbuild implements package scaffolding and archive assembly
// (spec.md §4.7 C7): genpkg creates a package skeleton, buildpkg turns a
// populated skeleton into a .kpkg archive.
//
// Grounded on _examples/original_source/src/pkgutil.rs's generate/build
// pair: same directory layout and two-stage archive (inner files.tar.zst,
// outer package.kdl+files.tar.zst tar.gz), reimplemented with stdlib
// archive/tar + compress/gzip and klauspost/compress/zstd in place of the
// original's tar/flate2/zstd/walkdir crates.
package pkgbuild

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/seiryolinux/koushou/internal/manifest"
)

// AlreadyExistsError is returned by Generate when the target directory already exists.
type AlreadyExistsError struct{ Name string }

func (e AlreadyExistsError) Error() string { return fmt.Sprintf("package %q already exists", e.Name) }

// MissingMetadataError is returned by Build when package.kdl is absent.
type MissingMetadataError struct{ Dir string }

func (e MissingMetadataError) Error() string {
	return fmt.Sprintf("missing package.kdl in: %s", e.Dir)
}

// MissingFilesDirError is returned by Build when the files/ directory is absent.
type MissingFilesDirError struct{ Dir string }

func (e MissingFilesDirError) Error() string {
	return fmt.Sprintf("missing 'files' directory in: %s", e.Dir)
}

const stubManifest = `package "%s" version="0.1" arch="x86_64" flavor="glibc-systemd" {
  depends "glibc"
  license "MIT"
}
`

// Generate scaffolds a new package directory named name: package.kdl plus
// a files/usr/bin/<name> stub script (spec.md §4.7, §6 genpkg verb).
func Generate(dir string) error {
	name := filepath.Base(dir)
	if _, err := os.Stat(dir); err == nil {
		return AlreadyExistsError{Name: name}
	}

	binDir := filepath.Join(dir, "files", "usr", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", binDir)
	}

	kdl := fmt.Sprintf(stubManifest, name)
	if err := os.WriteFile(filepath.Join(dir, "package.kdl"), []byte(kdl), 0o644); err != nil {
		return errors.Wrap(err, "writing package.kdl")
	}

	script := fmt.Sprintf("#!/bin/sh\necho \"Hello from %s\"\n", name)
	scriptPath := filepath.Join(binDir, name)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return errors.Wrap(err, "writing stub script")
	}
	return nil
}

// Build assembles dir's package.kdl + files/ into a .kpkg archive placed
// inside dir, returning the output path. It removes its own
// files.tar.zst staging file on success (spec.md §4.7).
func Build(dir string) (string, error) {
	kdlPath := filepath.Join(dir, "package.kdl")
	kdlContent, err := os.ReadFile(kdlPath)
	if err != nil {
		return "", MissingMetadataError{Dir: dir}
	}

	pkg, err := manifest.Parse(string(kdlContent))
	if err != nil {
		return "", errors.Wrap(err, "parsing package.kdl")
	}

	filesDir := filepath.Join(dir, "files")
	if _, err := os.Stat(filesDir); err != nil {
		return "", MissingFilesDirError{Dir: dir}
	}

	filesTarPath := filepath.Join(dir, "files.tar.zst")
	if err := buildFilesArchive(filesDir, filesTarPath); err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(filesTarPath) }()

	outputName := fmt.Sprintf("%s-%s-%s.kpkg", pkg.Name, pkg.Version, pkg.Arch)
	outputPath := filepath.Join(dir, outputName)
	if err := buildOuterArchive(outputPath, kdlPath, filesTarPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

func buildFilesArchive(filesDir, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outPath)
	}
	defer func() { _ = out.Close() }()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errors.Wrap(err, "creating zstd encoder")
	}

	tw := tar.NewWriter(zw)

	err = filepath.Walk(filesDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, err := filepath.Rel(filesDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		return appendFilesEntry(tw, path, relPath, info)
	})
	if err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return errors.Wrap(err, "walking files directory")
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "closing files.tar.zst tar writer")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "closing files.tar.zst zstd encoder")
	}
	return nil
}

func appendFilesEntry(tw *tar.Writer, path, relPath string, info os.FileInfo) error {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:     relPath,
			Typeflag: tar.TypeSymlink,
			Linkname: target,
			Mode:     0o777,
		}
		return tw.WriteHeader(hdr)

	case info.IsDir():
		hdr := &tar.Header{
			Name:     relPath + "/",
			Typeflag: tar.TypeDir,
			Mode:     0o755,
		}
		return tw.WriteHeader(hdr)

	default:
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = relPath
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(tw, f)
		return err
	}
}

func buildOuterArchive(outputPath, kdlPath, filesTarPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outputPath)
	}
	defer func() { _ = out.Close() }()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	if err := appendPlainFile(tw, kdlPath, "package.kdl"); err != nil {
		return errors.Wrap(err, "appending package.kdl")
	}
	if err := appendPlainFile(tw, filesTarPath, "files.tar.zst"); err != nil {
		return errors.Wrap(err, "appending files.tar.zst")
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "closing kpkg tar writer")
	}
	if err := gw.Close(); err != nil {
		return errors.Wrap(err, "closing kpkg gzip writer")
	}
	return nil
}

func appendPlainFile(tw *tar.Writer, path, archiveName string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(tw, f)
	return err
}
