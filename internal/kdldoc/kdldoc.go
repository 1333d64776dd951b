// Package kdldoc holds the small set of KDL document accessors shared by
// the package-manifest parser and the mirror-list parser. Both documents
// are shaped as top-level nodes with string arguments/properties and
// optional children, so the two callers share these helpers instead of
// repeating the same type switches.
package kdldoc

import (
	"fmt"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Parse parses a KDL document from text.
func Parse(text string) (*document.Document, error) {
	return kdl.Parse(strings.NewReader(text))
}

// Name returns a node's name, or "" for a nil node.
func Name(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

// FindChild returns the first direct child of n named childName.
func FindChild(n *document.Node, childName string) *document.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if Name(c) == childName {
			return c
		}
	}
	return nil
}

// FirstArgString returns n's first positional argument as a string.
// ok is false if there are no arguments or the first one isn't a string.
func FirstArgString(n *document.Node) (string, bool) {
	if n == nil || len(n.Arguments) == 0 {
		return "", false
	}
	return asString(n.Arguments[0].Value)
}

// Property returns the raw value of property key on node n.
func Property(n *document.Node, key string) (interface{}, bool) {
	if n == nil {
		return nil, false
	}
	for _, p := range n.Properties {
		if p.Name != nil && p.Name.NodeNameString() == key {
			return p.Value.Value, true
		}
	}
	return nil, false
}

// PropertyString returns property key on node n as a string. ok is false
// if the property is absent; err is non-nil if present but not a string.
func PropertyString(n *document.Node, key string) (value string, ok bool, err error) {
	raw, present := Property(n, key)
	if !present {
		return "", false, nil
	}
	s, isString := asString(raw)
	if !isString {
		return "", true, fmt.Errorf("property %q: expected string value, got %T", key, raw)
	}
	return s, true, nil
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
