// Package fetch streams a package archive from its repository URL to local
// cache storage, verifying its digest as it writes (spec.md §4.5 C5).
//
// Grounded on helpers.DownloadFile (_examples/clearlinux-mixer-tools/helpers/helpers.go):
// same http.Get + create-destination + io.Copy shape, generalized to stream
// through a SHA-256 digest and a progress bar instead of a plain io.Copy.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// Sha256MismatchError is returned when a downloaded file's digest does not
// match the expected value from the repository database (spec.md §4.5,
// §8 invariant on digest verification).
type Sha256MismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e Sha256MismatchError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// HTTPStatusError is returned when the server responds with anything but 200 OK.
type HTTPStatusError struct {
	URL    string
	Status string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status fetching %s: %s", e.URL, e.Status)
}

// Options controls how Fetch reports progress.
type Options struct {
	// ShowProgress enables a terminal progress bar on os.Stderr.
	ShowProgress bool
	// Label is the name shown alongside the progress bar (e.g. package filename).
	Label string
}

// Fetch downloads url to destPath, verifying the streamed content's SHA-256
// digest matches expectedSha256 (case-insensitive hex). On mismatch the
// partially-written file is removed and Sha256MismatchError is returned.
//
// destPath's parent directory must already exist.
func Fetch(ctx context.Context, client *http.Client, url, destPath, expectedSha256 string, opts Options) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return HTTPStatusError{URL: url, Status: resp.Status}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", destPath)
	}

	digest := sha256.New()
	var writer io.Writer = io.MultiWriter(out, digest)

	if opts.ShowProgress {
		label := opts.Label
		if label == "" {
			label = filepath.Base(destPath)
		}
		bar := progressbar.DefaultBytes(resp.ContentLength, label)
		writer = io.MultiWriter(writer, bar)
	}

	_, copyErr := io.Copy(writer, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(destPath)
		return errors.Wrapf(copyErr, "downloading %s", url)
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return errors.Wrapf(closeErr, "closing %s", destPath)
	}

	actual := hex.EncodeToString(digest.Sum(nil))
	if !strings.EqualFold(actual, expectedSha256) {
		_ = os.Remove(destPath)
		return Sha256MismatchError{URL: url, Expected: strings.ToLower(expectedSha256), Actual: actual}
	}

	return nil
}

// VerifyFile recomputes the SHA-256 digest of an existing file and compares
// it against expectedSha256, without re-downloading — used to validate a
// cache hit before skipping a fetch (spec.md §4.10 cache-hit path).
func VerifyFile(path, expectedSha256 string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer func() { _ = f.Close() }()

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	actual := hex.EncodeToString(digest.Sum(nil))
	if !strings.EqualFold(actual, expectedSha256) {
		return Sha256MismatchError{URL: path, Expected: strings.ToLower(expectedSha256), Actual: actual}
	}
	return nil
}
