// Package scope resolves the reserved relative names of nested scope
// elements (this, parent, static, namespace) against the element tree.
package scope

import (
	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/xmltree"
)

// Reserved relative names.
const (
	This      = "this"
	Parent    = "parent"
	Static    = "static"
	Namespace = "namespace"
)

// IsReserved reports whether name is a reserved relative name.
func IsReserved(name string) bool {
	switch name {
	case This, Parent, Static, Namespace:
		return true
	}
	return false
}

// Resolver walks ancestor chains looking for scope elements.
type Resolver struct {
	// ScopeElements are the element names that open a scope.
	ScopeElements map[string]bool
	// Container is the element holding top-level scopes, itself a direct
	// child of the document root.
	Container string
	// NamespaceAttr declares a namespace boundary on a scope element.
	NamespaceAttr string
}

// New returns the resolver for mission scripts: cues and libraries nest
// inside <cues>, and a namespace attribute marks a namespace boundary.
func New() *Resolver {
	return &Resolver{
		ScopeElements: map[string]bool{"cue": true, "library": true},
		Container:     "cues",
		NamespaceAttr: "namespace",
	}
}

// IsScope reports whether el opens a scope.
func (r *Resolver) IsScope(el *xmltree.Element) bool {
	return el != nil && r.ScopeElements[el.Name]
}

// Enclosing returns el itself when it is a scope element, otherwise the
// nearest ancestor that is. Nil when there is none.
func (r *Resolver) Enclosing(el *xmltree.Element) *xmltree.Element {
	for e := el; e != nil; e = e.Parent {
		if r.IsScope(e) {
			return e
		}
	}
	return nil
}

// Outer returns the scope enclosing el's nearest scope.
func (r *Resolver) Outer(el *xmltree.Element) *xmltree.Element {
	nearest := r.Enclosing(el)
	if nearest == nil {
		return nil
	}
	return r.Enclosing(nearest.Parent)
}

// NamespaceOf walks upward from el's nearest scope, passing scopes that
// neither declare a namespace nor sit directly in the top-level container.
func (r *Resolver) NamespaceOf(el *xmltree.Element) *xmltree.Element {
	for s := r.Enclosing(el); s != nil; s = r.Enclosing(s.Parent) {
		if s.HasAttr(r.NamespaceAttr) || r.isTopLevel(s) {
			return s
		}
	}
	return nil
}

func (r *Resolver) isTopLevel(s *xmltree.Element) bool {
	c := s.Parent
	return c != nil && c.Name == r.Container && c.Parent != nil && c.Parent.Parent == nil
}

// Resolve returns the scope element a reserved name denotes when used at
// el. Nil for unreserved names or when no scope encloses el.
func (r *Resolver) Resolve(name string, el *xmltree.Element) *xmltree.Element {
	switch name {
	case This, Static:
		return r.Enclosing(el)
	case Parent:
		return r.Outer(el)
	case Namespace:
		return r.NamespaceOf(el)
	}
	return nil
}

// Target returns the range naming scope element s: its name attribute value
// or, lacking one, its tag name.
func Target(s *xmltree.Element) span.Range {
	if a, ok := s.Attr("name"); ok {
		return a.ValueRange
	}
	return s.NameRange
}

// Contains reports whether r lies inside the full extent of s.
func Contains(s *xmltree.Element, r span.Range) bool {
	return s != nil && r.Within(s.FullRange)
}
