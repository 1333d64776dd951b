// Package resolve is the dependency resolver (spec.md §3 ResolutionSolution,
// §4.4 C4): given root package names, a system flavor, and an arch, it
// produces a closed set of selected package instances with download URL
// and expected digest.
//
// The algorithm is deliberately simple, grounded on
// _examples/original_source/src/depres.rs: greedy depth-first traversal,
// highest-version-first-wins (lexicographic byte-wise ordering), ties
// broken by repository precedence. Version predicates are parsed but not
// enforced against the chosen candidate — a documented known gap
// (spec.md §9) preserved here for fidelity to the original.
package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/seiryolinux/koushou/internal/universe"
)

// Predicate is the comparison a Dependency constrains its target to.
type Predicate int

// The four predicate kinds spec.md §3 names.
const (
	Any Predicate = iota
	Exact
	AtLeast
	Below
)

// Dependency is a constraint edge: (name, predicate).
type Dependency struct {
	Name      string
	Predicate Predicate
	Version   string
}

var depPattern = regexp.MustCompile(`^([A-Za-z0-9._-]+)([<>=!]+)?(.*)$`)

// ParseDependency parses a raw constraint string like "glibc>=2.38",
// "bash", or "x=1.0".
func ParseDependency(raw string) Dependency {
	m := depPattern.FindStringSubmatch(raw)
	if m == nil {
		return Dependency{Name: raw, Predicate: Any}
	}
	name, op, version := m[1], m[2], m[3]
	if version == "" || op == "" {
		return Dependency{Name: name, Predicate: Any}
	}
	switch op {
	case ">=":
		return Dependency{Name: name, Predicate: AtLeast, Version: version}
	case "<":
		return Dependency{Name: name, Predicate: Below, Version: version}
	case "=":
		return Dependency{Name: name, Predicate: Exact, Version: version}
	default:
		return Dependency{Name: name, Predicate: Exact, Version: version}
	}
}

// Matches reports whether candidateVersion satisfies d.
func (d Dependency) Matches(candidateVersion string) bool {
	switch d.Predicate {
	case Any:
		return true
	case Exact:
		return candidateVersion == d.Version
	case AtLeast:
		return candidateVersion >= d.Version
	case Below:
		return candidateVersion < d.Version
	default:
		return true
	}
}

// PackageNotFoundError is returned when name has no candidate for (arch, flavor).
type PackageNotFoundError struct{ Name string }

func (e PackageNotFoundError) Error() string {
	return fmt.Sprintf("package '%s' not found in any repository", e.Name)
}

// FlavorMismatchError is returned when a selected entry's flavor differs
// from the system's (defensive — the universe lookup is already keyed by
// flavor, see spec.md §4.4 step 3).
type FlavorMismatchError struct{ Required, System string }

func (e FlavorMismatchError) Error() string {
	return fmt.Sprintf("flavor mismatch: package requires '%s', system is '%s'", e.Required, e.System)
}

// CircularDependencyError is returned when a name is re-entered on the
// current DFS path.
type CircularDependencyError struct{ Name string }

func (e CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected involving: %s", e.Name)
}

// VersionConstraintError is returned by a strict resolver when a
// dependency's predicate rejects the chosen candidate. Unused by Resolve
// itself (predicates aren't enforced — spec.md §9) but kept as the error
// kind spec.md §7 names, for callers that choose to enforce predicates
// explicitly via Dependency.Matches.
type VersionConstraintError struct{ Detail string }

func (e VersionConstraintError) Error() string {
	return fmt.Sprintf("version constraint not satisfied: %s", e.Detail)
}

// NoSolutionError is returned when no selection set can be produced.
type NoSolutionError struct{ Detail string }

func (e NoSolutionError) Error() string { return fmt.Sprintf("no solution found: %s", e.Detail) }

// Selection is one resolved package: its identity plus where to fetch it
// from and what digest to expect.
type Selection struct {
	universe.Entry
	URL string
}

// Solution is the resolver's output: an unordered set of selected
// packages (spec.md §3).
type Solution struct {
	Selections map[string]Selection
}

// URLFunc builds the download URL for a resolved entry.
type URLFunc func(e universe.Entry) string

// DefaultOrigin is the well-known fallback origin used when no mirror
// configuration is available (spec.md §4.3, grounded on
// _examples/original_source/src/resolve.rs's hardcoded origin).
const DefaultOrigin = "https://seiryolinux.github.io/repo"

// BuildURL constructs a package download URL per spec.md §4.3:
// https://<origin>/<flavor>/<repo>/<arch>/<filename>
func BuildURL(origin string, e universe.Entry) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(origin, "/"), e.Flavor, e.Repo, e.Arch, e.Filename)
}

type frame struct {
	name string
}

// Resolve performs the greedy DFS resolution described in spec.md §4.4.
func Resolve(u *universe.Universe, roots []string, systemFlavor, arch string, urlFor URLFunc) (*Solution, error) {
	selected := map[string]universe.Entry{}
	visiting := map[string]bool{}

	// Explicit work-stack instead of native recursion (spec.md §9
	// "Recursion → iteration" SHOULD). Each stack frame represents one
	// name whose selection + dependency expansion is still pending;
	// popping a frame "closes" it by clearing it from visiting.
	type pendingFrame struct {
		name     string
		expanded bool
	}

	var stack []pendingFrame
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, pendingFrame{name: roots[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.expanded {
			// Children have been pushed and resolved; close this frame.
			stack = stack[:len(stack)-1]
			delete(visiting, top.name)
			continue
		}

		// The cycle check must run before the already-selected check: a
		// name can be present in selected while still visiting (its own
		// subtree isn't fully expanded yet), and in that state a
		// re-encounter is a cycle, not a resolved diamond dependency.
		if visiting[top.name] {
			return nil, CircularDependencyError{Name: top.name}
		}

		if _, ok := selected[top.name]; ok {
			// Fully closed already via another path (diamond dependency).
			stack = stack[:len(stack)-1]
			continue
		}
		visiting[top.name] = true

		candidates := u.Candidates(top.name, arch, systemFlavor)
		if len(candidates) == 0 {
			return nil, PackageNotFoundError{Name: top.name}
		}

		best := highestVersion(candidates)
		if best.Flavor != systemFlavor {
			return nil, FlavorMismatchError{Required: best.Flavor, System: systemFlavor}
		}

		selected[top.name] = best

		stack[len(stack)-1] = pendingFrame{name: top.name, expanded: true}

		for i := len(best.Depends) - 1; i >= 0; i-- {
			dep := ParseDependency(best.Depends[i])
			// Skip the push only once dep.Name is fully closed (selected
			// and no longer visiting). While it's still visiting, it's an
			// ancestor on the current path and must be re-pushed so the
			// cycle check above can fire when this frame is processed.
			if _, ok := selected[dep.Name]; ok && !visiting[dep.Name] {
				continue
			}
			stack = append(stack, pendingFrame{name: dep.Name})
		}
	}

	sol := &Solution{Selections: map[string]Selection{}}
	for name, entry := range selected {
		url := BuildURL(DefaultOrigin, entry)
		if urlFor != nil {
			url = urlFor(entry)
		}
		sol.Selections[name] = Selection{Entry: entry, URL: url}
	}
	return sol, nil
}

// highestVersion picks the candidate with the highest version
// (lexicographic byte-wise comparison, spec.md §4.4), ties broken by
// repository precedence core > main > extra.
func highestVersion(candidates []universe.Entry) universe.Entry {
	sorted := make([]universe.Entry, len(candidates))
	copy(sorted, candidates)

	repoRank := func(repo string) int {
		for i, r := range universe.RepoOrder {
			if r == repo {
				return i
			}
		}
		return len(universe.RepoOrder)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Version != sorted[j].Version {
			return sorted[i].Version > sorted[j].Version
		}
		return repoRank(sorted[i].Repo) < repoRank(sorted[j].Repo)
	})
	return sorted[0]
}
