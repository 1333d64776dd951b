// Package reposync fetches and caches repository databases (spec.md §4.6
// C6), grounded on _examples/original_source/src/sync.rs's per-repo fetch
// loop, generalized to walk the mirror list (spec.md §4.6's resolved Open
// Question: mirror precedence drives the sync URL, see SPEC_FULL.md §9) and
// to decompress with zstd instead of the original's ad-hoc JSON validation.
package reposync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/seiryolinux/koushou/internal/klog"
	"github.com/seiryolinux/koushou/internal/mirror"
	"github.com/seiryolinux/koushou/internal/universe"
)

// RepoNames is the fixed set of repositories synced on every run, in
// precedence order (spec.md §4.3).
var RepoNames = universe.RepoOrder

// NoMirrorsError is returned when the mirror list has no active entries.
type NoMirrorsError struct{}

func (NoMirrorsError) Error() string { return "no active mirrors configured" }

// Result records what happened to one repository during a sync pass.
type Result struct {
	Repo    string
	Skipped bool // true when every mirror returned 404 for this repo
	Err     error
}

// Sync fetches each repository in RepoNames from the highest-priority
// active mirror, falling through to the next mirror on a per-repo 404
// (spec.md §4.6), decompresses each with zstd, validates it as TOML, and
// persists both the compressed and decompressed forms under the universe
// cache directory. A 404 from every mirror is non-fatal for that repo —
// matching sync.rs's "eprintln + continue" behavior — and is reported via
// Result.Skipped rather than as an error.
func Sync(ctx context.Context, client *http.Client, root, flavor, arch string, mirrors []mirror.Mirror) ([]Result, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if len(mirrors) == 0 {
		return nil, NoMirrorsError{}
	}

	dir := universe.CacheDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating repo cache dir %s", dir)
	}

	var results []Result
	for _, repo := range RepoNames {
		res := syncOne(ctx, client, dir, flavor, arch, repo, mirrors)
		results = append(results, res)
		if res.Err != nil {
			return results, res.Err
		}
	}
	return results, nil
}

func syncOne(ctx context.Context, client *http.Client, dir, flavor, arch, repo string, mirrors []mirror.Mirror) Result {
	var lastErr error
	for _, m := range mirrors {
		url := m.RepoURL(flavor, repo, arch)
		klog.Info(klog.Sync, "fetching %s", url)

		body, status, err := get(ctx, client, url)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound {
			klog.Warning(klog.Sync, "repo %s not found at %s, trying next mirror", repo, m.Name)
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d fetching %s", status, url)
			continue
		}

		if err := persist(dir, repo, body); err != nil {
			return Result{Repo: repo, Err: err}
		}
		klog.Info(klog.Sync, "%s synced", repo)
		return Result{Repo: repo}
	}

	if lastErr != nil {
		return Result{Repo: repo, Err: lastErr}
	}
	// Every mirror reported 404 for this repo: non-fatal, matches sync.rs.
	return Result{Repo: repo, Skipped: true}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "building request for %s", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "fetching %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "reading response body from %s", url)
	}
	return body, resp.StatusCode, nil
}

func persist(dir, repo string, compressed []byte) error {
	compressedPath := filepath.Join(dir, repo+".db.zst")
	if err := os.WriteFile(compressedPath, compressed, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", compressedPath)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return errors.Wrap(err, "creating zstd decoder")
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return errors.Wrapf(err, "decompressing %s", compressedPath)
	}

	var probe map[string]interface{}
	if _, err := toml.Decode(string(decompressed), &probe); err != nil {
		return errors.Wrapf(err, "validating %s as TOML repo database", repo)
	}

	dbPath := filepath.Join(dir, repo+".db")
	if err := os.WriteFile(dbPath, decompressed, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", dbPath)
	}
	return nil
}
