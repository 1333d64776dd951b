package pkgbuild_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiryolinux/koushou/internal/pkgbuild"
)

func TestGenerateScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(dir))

	_, err := os.Stat(filepath.Join(dir, "package.kdl"))
	require.NoError(t, err)

	scriptPath := filepath.Join(dir, "files", "usr", "bin", "hello")
	info, err := os.Stat(scriptPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111, "stub script should be executable")
}

func TestGenerateRefusesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(dir))

	err := pkgbuild.Generate(dir)
	assert.Equal(t, pkgbuild.AlreadyExistsError{Name: "hello"}, err)
}

func TestBuildMissingManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "files"), 0o755))

	_, err := pkgbuild.Build(dir)
	assert.Equal(t, pkgbuild.MissingMetadataError{Dir: dir}, err)
}

func TestBuildMissingFilesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.kdl"),
		[]byte(`package "hello" version="0.1" arch="x86_64" flavor="glibc-systemd" {}`), 0o644))

	_, err := pkgbuild.Build(dir)
	assert.Equal(t, pkgbuild.MissingFilesDirError{Dir: dir}, err)
}

func TestBuildProducesValidKpkg(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, pkgbuild.Generate(dir))

	outputPath, err := pkgbuild.Build(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hello-0.1-x86_64.kpkg"), outputPath)

	// files.tar.zst staging file must be cleaned up.
	_, err = os.Stat(filepath.Join(dir, "files.tar.zst"))
	assert.True(t, os.IsNotExist(err))

	f, err := os.Open(outputPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var names []string
	var filesTarBytes []byte
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
		if hdr.Name == "files.tar.zst" {
			filesTarBytes, err = io.ReadAll(tr)
			require.NoError(t, err)
		}
	}
	assert.ElementsMatch(t, []string{"package.kdl", "files.tar.zst"}, names)

	zr, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer zr.Close()
	decompressed, err := zr.DecodeAll(filesTarBytes, nil)
	require.NoError(t, err)

	innerTar := tar.NewReader(bytes.NewReader(decompressed))
	var innerNames []string
	for {
		hdr, err := innerTar.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		innerNames = append(innerNames, hdr.Name)
	}
	assert.Contains(t, innerNames, "usr/bin/hello")
}
