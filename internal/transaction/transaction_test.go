package transaction_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seiryolinux/koushou/internal/fetch"
	"github.com/seiryolinux/koushou/internal/pkgdb"
	"github.com/seiryolinux/koushou/internal/transaction"
	"github.com/seiryolinux/koushou/internal/universe"
)

func sha256Hex(t *testing.T, content string) string {
	t.Helper()
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func setupRoot(t *testing.T, flavor string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc", "koushou"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, transaction.FlavorPath), []byte(flavor+"\n"), 0o644))
	return root
}

// rewriteToServer sends every request to the stub server at host, whatever
// host the request URL names, so the resolver's DefaultOrigin download URLs
// reach the test server.
type rewriteToServer struct{ host string }

func (r rewriteToServer) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = "http"
	out.URL.Host = r.host
	return http.DefaultTransport.RoundTrip(out)
}

func TestReadFlavorMissing(t *testing.T) {
	root := t.TempDir()
	_, err := transaction.ReadFlavor(root)
	require.Error(t, err)
	var missing transaction.MissingFlavorError
	require.ErrorAs(t, err, &missing)
}

func TestDetectArchMapsSupportedHost(t *testing.T) {
	arch, err := transaction.DetectArch()
	require.NoError(t, err)
	assert.Contains(t, []string{"x86_64", "aarch64"}, arch)
}

func TestInstallEndToEnd(t *testing.T) {
	root := setupRoot(t, "glibc-systemd")

	const binContent = "#!/bin/sh\necho hi\n"
	digest := sha256Hex(t, binContent)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(binContent))
	}))
	defer srv.Close()

	dbDir := universe.CacheDir(root)
	require.NoError(t, os.MkdirAll(dbDir, 0o755))
	toml := `
[packages.hi]
version = "1.0"
arch = "x86_64"
flavor = "glibc-systemd"
filename = "hi.kpkg"
sha256 = "` + digest + `"
`
	require.NoError(t, os.WriteFile(filepath.Join(dbDir, "core.db"), []byte(toml), 0o644))

	err := transaction.Install(context.Background(), root, []string{"hi"}, transaction.Options{
		HTTPClient: &http.Client{Transport: rewriteToServer{host: srv.Listener.Addr().String()}},
	})
	// This fails at the install.Local stage because "hi.kpkg" isn't a real
	// .kpkg archive (it's a bare script body fetched from the stub
	// server) — here we only assert the fetch+cache-verify leg succeeded
	// by checking the cache file landed with the right digest, since a
	// full .kpkg fixture is exercised end-to-end in the pkgbuild/install
	// package tests instead.
	_ = err

	cached := filepath.Join(transaction.CacheDir(root), "hi.kpkg")
	require.NoError(t, fetch.VerifyFile(cached, digest))

	_, dbErr := pkgdb.LoadOrEmpty(pkgdb.Path(root))
	require.NoError(t, dbErr)
}
