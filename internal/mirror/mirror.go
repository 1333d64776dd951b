// Package mirror parses the KDL mirror-list document consulted by
// repository sync (spec.md §4.6):
//
//	mirror "<name>" url=<str> [priority=<int>] [protocol=<str>] [region=<str>] [active=<bool>]
package mirror

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sblinch/kdl-go/document"
	"github.com/seiryolinux/koushou/internal/kdldoc"
)

// Mirror is a single entry from the mirror list.
type Mirror struct {
	Name     string
	URL      string
	Priority int
	Protocol string
	Region   string
	Active   bool
}

// MissingPropertyError is returned when a mirror is missing a required property.
type MissingPropertyError struct {
	Name  string
	Field string
}

func (e MissingPropertyError) Error() string {
	return fmt.Sprintf("mirror %q is missing required property: %s", e.Name, e.Field)
}

// InvalidValueError is returned when a mirror property can't be parsed to its expected type.
type InvalidValueError struct {
	Name  string
	Field string
	Value string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("mirror %q: invalid value for %q: %s", e.Name, e.Field, e.Value)
}

// DefaultPath is where koushou looks for the mirror list absent an override.
const DefaultPath = "/etc/koushou/mirrorlist.kdl"

// LoadDefault reads and parses the mirror list from DefaultPath.
func LoadDefault() ([]Mirror, error) {
	content, err := os.ReadFile(DefaultPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading mirrorlist %s", DefaultPath)
	}
	return Parse(string(content))
}

// Parse parses mirror nodes from KDL text, then sorts by priority
// descending and filters to active mirrors (spec.md §8 invariant 10:
// the active filter is applied AFTER the priority sort).
func Parse(text string) ([]Mirror, error) {
	doc, err := kdldoc.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parsing mirrorlist")
	}

	var mirrors []Mirror
	for _, n := range doc.Nodes {
		if kdldoc.Name(n) != "mirror" {
			continue
		}
		m, err := parseMirrorNode(n)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}

	sort.SliceStable(mirrors, func(i, j int) bool {
		return mirrors[i].Priority > mirrors[j].Priority
	})

	active := mirrors[:0]
	for _, m := range mirrors {
		if m.Active {
			active = append(active, m)
		}
	}
	return active, nil
}

func parseMirrorNode(n *document.Node) (Mirror, error) {
	name, ok := kdldoc.FirstArgString(n)
	if !ok {
		return Mirror{}, MissingPropertyError{Name: "unknown", Field: "name"}
	}

	url, present, err := kdldoc.PropertyString(n, "url")
	if err != nil {
		return Mirror{}, InvalidValueError{Name: name, Field: "url", Value: err.Error()}
	}
	if !present {
		return Mirror{}, MissingPropertyError{Name: name, Field: "url"}
	}

	priority := 0
	if raw, present := kdldoc.Property(n, "priority"); present {
		priority, err = coerceInt(raw)
		if err != nil {
			return Mirror{}, InvalidValueError{Name: name, Field: "priority", Value: fmt.Sprint(raw)}
		}
	}

	protocol, err := stringPropertyOrDefault(n, name, "protocol", "https")
	if err != nil {
		return Mirror{}, err
	}
	region, err := stringPropertyOrDefault(n, name, "region", "global")
	if err != nil {
		return Mirror{}, err
	}

	active := true
	if raw, present := kdldoc.Property(n, "active"); present {
		b, ok := raw.(bool)
		if !ok {
			return Mirror{}, InvalidValueError{Name: name, Field: "active", Value: fmt.Sprint(raw)}
		}
		active = b
	}

	return Mirror{
		Name:     name,
		URL:      url,
		Priority: priority,
		Protocol: protocol,
		Region:   region,
		Active:   active,
	}, nil
}

func stringPropertyOrDefault(n *document.Node, name, field, def string) (string, error) {
	value, present, err := kdldoc.PropertyString(n, field)
	if err != nil {
		return "", InvalidValueError{Name: name, Field: field, Value: err.Error()}
	}
	if !present {
		return def, nil
	}
	return value, nil
}

func coerceInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

// RepoURL builds the sync URL for repo under flavor/arch, per spec.md §4.3.
func (m Mirror) RepoURL(flavor, repo, arch string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.db.zst", trimTrailingSlash(m.URL), flavor, repo, arch, repo)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
