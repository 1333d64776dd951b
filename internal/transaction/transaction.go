// Package transaction orchestrates an end-to-end install of one or more
// root package names (spec.md §4.10 C10): read the system flavor, detect
// arch, load the cached repository universe, resolve a solution, install
// every selection in dependency order, fetching from cache or network as
// needed.
//
// Grounded on _examples/original_source/src/install.rs's
// install_package_by_name (flavour file + arch detection + cache dir +
// resolve + per-package download/verify/install loop). One deliberate
// departure from the original: packages are installed in dependency-first
// topological order rather than arbitrary map-iteration order, since a
// package's install step may in principle assume its dependencies are
// already in place (SPEC_FULL.md §5).
package transaction

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/seiryolinux/koushou/internal/fetch"
	"github.com/seiryolinux/koushou/internal/install"
	"github.com/seiryolinux/koushou/internal/klog"
	"github.com/seiryolinux/koushou/internal/resolve"
	"github.com/seiryolinux/koushou/internal/universe"
)

// FlavorPath is where the system flavor is recorded under a root.
const FlavorPath = "etc/koushou/flavor"

// MissingFlavorError is returned when root has no flavor file.
type MissingFlavorError struct{ Path string }

func (e MissingFlavorError) Error() string {
	return fmt.Sprintf("flavor file not found: %s", e.Path)
}

// UnsupportedArchError is returned when runtime.GOARCH has no koushou mapping.
type UnsupportedArchError struct{ Arch string }

func (e UnsupportedArchError) Error() string {
	return fmt.Sprintf("unsupported architecture: %s", e.Arch)
}

// DetectArch maps the Go runtime architecture to koushou's arch vocabulary
// (spec.md §3): amd64 is "x86_64", arm64 is "aarch64", and any other value
// yields UnsupportedArchError.
func DetectArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", UnsupportedArchError{Arch: runtime.GOARCH}
	}
}

// ReadFlavor reads and trims the flavor file under root.
func ReadFlavor(root string) (string, error) {
	path := filepath.Join(root, FlavorPath)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", MissingFlavorError{Path: path}
	}
	return strings.TrimSpace(string(content)), nil
}

// CacheDir is where downloaded .kpkg archives are stored under root.
func CacheDir(root string) string {
	return filepath.Join(root, "var", "cache", "koushou", "pkgs")
}

// Options controls transaction behavior.
type Options struct {
	HTTPClient   *http.Client
	ShowProgress bool
}

// Install resolves and installs every name in names (plus their
// dependency closure) onto root, in dependency-first order. The
// transaction fails fast on the first error: packages already installed
// by prior iterations of this same call are NOT rolled back (spec.md §9:
// rollback is an explicit non-goal).
func Install(ctx context.Context, root string, names []string, opts Options) error {
	flavor, err := ReadFlavor(root)
	if err != nil {
		return err
	}
	arch, err := DetectArch()
	if err != nil {
		return err
	}

	klog.Info(klog.Core, "resolving %s for flavor=%s arch=%s", strings.Join(names, ", "), flavor, arch)

	u, err := universe.Load(root)
	if err != nil {
		return errors.Wrap(err, "loading package universe")
	}

	sol, err := resolve.Resolve(u, names, flavor, arch, nil)
	if err != nil {
		return errors.Wrap(err, "resolving dependencies")
	}

	ordered, err := topoSort(sol)
	if err != nil {
		return err
	}

	cacheDir := CacheDir(root)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", cacheDir)
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	for _, sel := range ordered {
		if err := installOne(ctx, client, cacheDir, root, sel, opts.ShowProgress); err != nil {
			return errors.Wrapf(err, "installing %s", sel.Name)
		}
	}

	return nil
}

func installOne(ctx context.Context, client *http.Client, cacheDir, root string, sel resolve.Selection, showProgress bool) error {
	kpkgPath := filepath.Join(cacheDir, sel.Filename)

	if _, err := os.Stat(kpkgPath); err == nil {
		if verifyErr := fetch.VerifyFile(kpkgPath, sel.SHA256); verifyErr == nil {
			klog.Debug(klog.Fetch, "cache hit for %s", sel.Filename)
			return install.Local(kpkgPath, root)
		}
		klog.Warning(klog.Fetch, "cached %s failed verification, refetching", sel.Filename)
	}

	klog.Info(klog.Fetch, "fetching %s", sel.Filename)
	err := fetch.Fetch(ctx, client, sel.URL, kpkgPath, sel.SHA256, fetch.Options{
		ShowProgress: showProgress,
		Label:        sel.Filename,
	})
	if err != nil {
		return err
	}

	return install.Local(kpkgPath, root)
}

// topoSort orders a Solution's selections dependency-first: every entry
// appears only after all of its own dependencies (spec.md §9 divergence
// noted in the package doc comment).
func topoSort(sol *resolve.Solution) ([]resolve.Selection, error) {
	visited := map[string]bool{}
	visiting := map[string]bool{}
	var order []resolve.Selection

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return resolve.CircularDependencyError{Name: name}
		}
		sel, ok := sol.Selections[name]
		if !ok {
			// A dependency outside the solution set shouldn't happen if
			// Resolve closed the graph correctly; treat as already satisfied.
			return nil
		}
		visiting[name] = true
		for _, raw := range sel.Depends {
			dep := resolve.ParseDependency(raw)
			if err := visit(dep.Name); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		order = append(order, sel)
		return nil
	}

	names := make([]string, 0, len(sol.Selections))
	for name := range sol.Selections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
