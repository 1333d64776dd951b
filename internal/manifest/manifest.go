// Package manifest parses a single package's KDL manifest document:
//
//	package "<name>" version=<str> arch=<str> flavor=<str> {
//	  depends "<constraint>"      // zero or more
//	  homepage "<url>"            // optional
//	  license "<id>"              // optional
//	}
package manifest

import (
	"fmt"

	"github.com/sblinch/kdl-go/document"
	"github.com/seiryolinux/koushou/internal/kdldoc"
)

// Manifest is a single package's parsed metadata document.
type Manifest struct {
	Name     string
	Version  string
	Arch     string
	Flavor   string
	Depends  []string
	Homepage string
	License  string
}

// ParseError wraps an underlying KDL syntax error.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return fmt.Sprintf("parsing manifest: %s", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// MissingPackageNodeError is returned when the document has no top-level "package" node.
type MissingPackageNodeError struct{}

func (MissingPackageNodeError) Error() string { return "missing 'package' node" }

// MissingNameError is returned when the package node has no positional name argument.
type MissingNameError struct{}

func (MissingNameError) Error() string { return "package name not provided as first argument" }

// MissingPropertyError is returned when a required property is absent.
type MissingPropertyError struct{ Field string }

func (e MissingPropertyError) Error() string {
	return fmt.Sprintf("missing required property: %s", e.Field)
}

// InvalidPropertyValueError is returned when a property value is present but not a string.
type InvalidPropertyValueError struct{ Field string }

func (e InvalidPropertyValueError) Error() string {
	return fmt.Sprintf("expected string value for property: %s", e.Field)
}

// Parse decodes a manifest from its KDL text.
func Parse(text string) (*Manifest, error) {
	doc, err := kdldoc.Parse(text)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	var pkgNode *document.Node
	for _, n := range doc.Nodes {
		if kdldoc.Name(n) == "package" {
			pkgNode = n
			break
		}
	}
	if pkgNode == nil {
		return nil, MissingPackageNodeError{}
	}

	name, ok := kdldoc.FirstArgString(pkgNode)
	if !ok {
		return nil, MissingNameError{}
	}

	version, err := requiredStringProperty(pkgNode, "version")
	if err != nil {
		return nil, err
	}
	arch, err := requiredStringProperty(pkgNode, "arch")
	if err != nil {
		return nil, err
	}
	flavor, err := requiredStringProperty(pkgNode, "flavor")
	if err != nil {
		return nil, err
	}

	m := &Manifest{Name: name, Version: version, Arch: arch, Flavor: flavor}

	for _, child := range pkgNode.Children {
		value, hasValue := kdldoc.FirstArgString(child)
		if !hasValue {
			continue
		}
		switch kdldoc.Name(child) {
		case "depends":
			m.Depends = append(m.Depends, value)
		case "homepage":
			m.Homepage = value
		case "license":
			m.License = value
		}
	}

	return m, nil
}

func requiredStringProperty(n *document.Node, field string) (string, error) {
	value, present, err := kdldoc.PropertyString(n, field)
	if err != nil {
		return "", InvalidPropertyValueError{Field: field}
	}
	if !present {
		return "", MissingPropertyError{Field: field}
	}
	return value, nil
}
