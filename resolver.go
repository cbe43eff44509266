package scriptref

import (
	"fmt"
	"path/filepath"

	"github.com/jward/scriptref/internal/index"
	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/scope"
	"github.com/jward/scriptref/internal/span"
)

// Resolver answers definition and reference queries for one item type. Its
// behavior comes from the strategy matching the type's resolution class.
type Resolver struct {
	Descriptor rules.Descriptor
	strategy   strategy
}

// strategy holds the hooks that differ between resolution classes.
type strategy interface {
	// qualify returns the index key of name as used in script.
	qualify(script, name string) string
	// definition resolves rec as seen from the occurrence at. Nil when no
	// definition can be found.
	definition(doc *Document, rec *index.Record, at span.Location) (*span.Location, error)
	// references returns the references of rec relevant at at.
	references(doc *Document, rec *index.Record, at span.Location) []span.Location
	// definitionSummary renders def for detail text.
	definitionSummary(doc *Document, def span.Location) string
	// positional reports whether resolving name depends on where it is used.
	positional(name string) bool
}

func newResolver(e *Engine, d rules.Descriptor) *Resolver {
	base := basicStrategy{desc: d}
	var s strategy = base
	switch d.Resolution {
	case rules.External:
		s = externalStrategy{basicStrategy: base, e: e}
	case rules.Namespaced:
		s = namespacedStrategy{externalStrategy{basicStrategy: base, e: e}}
	case rules.Scoped:
		s = scopedStrategy{
			namespacedStrategy: namespacedStrategy{externalStrategy{basicStrategy: base, e: e}},
			scopes:             e.scopes,
		}
	}
	return &Resolver{Descriptor: d, strategy: s}
}

// Qualify returns the index key of name as used in script.
func (r *Resolver) Qualify(script, name string) string {
	return r.strategy.qualify(script, name)
}

// ---------------------------------------------------------------------------
// basic: names resolve within the document
// ---------------------------------------------------------------------------

type basicStrategy struct {
	desc rules.Descriptor
}

func (basicStrategy) qualify(_, name string) string { return name }

func (basicStrategy) definition(_ *Document, rec *index.Record, _ span.Location) (*span.Location, error) {
	if rec.Definition == nil {
		return nil, nil
	}
	loc := *rec.Definition
	return &loc, nil
}

func (basicStrategy) references(_ *Document, rec *index.Record, _ span.Location) []span.Location {
	return rec.References
}

func (basicStrategy) definitionSummary(doc *Document, def span.Location) string {
	pos := fmt.Sprintf("line %d, column %d", def.Start.Line+1, def.Start.Col+1)
	if def.DocumentID != doc.ID {
		return fmt.Sprintf("`%s` %s", filepath.Base(def.DocumentID), pos)
	}
	return pos
}

func (basicStrategy) positional(string) bool { return false }

// ---------------------------------------------------------------------------
// external: fall back to other open documents, then to scanned files
// ---------------------------------------------------------------------------

type externalStrategy struct {
	basicStrategy
	e *Engine
}

func (s externalStrategy) definition(doc *Document, rec *index.Record, at span.Location) (*span.Location, error) {
	if loc, _ := s.basicStrategy.definition(doc, rec, at); loc != nil {
		return loc, nil
	}
	if loc := s.e.openDefinition(s.desc.ID, rec.Name, doc.ID); loc != nil {
		return loc, nil
	}
	def, err := s.e.collector.Lookup(s.desc.ID, rec.Name)
	if err != nil || def == nil {
		return nil, err
	}
	loc := definitionLocation(def)
	return &loc, nil
}

// ---------------------------------------------------------------------------
// namespaced: keys are qualified with the namespace and script name
// ---------------------------------------------------------------------------

type namespacedStrategy struct {
	externalStrategy
}

func (s namespacedStrategy) qualify(script, name string) string {
	return s.desc.Qualify(script, name)
}

// ---------------------------------------------------------------------------
// scoped: reserved names resolve against the enclosing scope elements
// ---------------------------------------------------------------------------

type scopedStrategy struct {
	namespacedStrategy
	scopes *scope.Resolver
}

func (s scopedStrategy) qualify(script, name string) string {
	if scope.IsReserved(name) {
		return name
	}
	return s.namespacedStrategy.qualify(script, name)
}

func (s scopedStrategy) positional(name string) bool {
	return scope.IsReserved(name)
}

func (s scopedStrategy) definition(doc *Document, rec *index.Record, at span.Location) (*span.Location, error) {
	if scope.IsReserved(rec.Name) {
		if target := s.scopes.Resolve(rec.Name, doc.elementAt(at.Start)); target != nil {
			return &span.Location{DocumentID: doc.ID, Range: scope.Target(target)}, nil
		}
	}
	return s.namespacedStrategy.definition(doc, rec, at)
}

// references keeps, for reserved names, only the references inside the
// scope enclosing at that denote the same scope element.
func (s scopedStrategy) references(doc *Document, rec *index.Record, at span.Location) []span.Location {
	if !scope.IsReserved(rec.Name) {
		return rec.References
	}
	el := doc.elementAt(at.Start)
	current := s.scopes.Enclosing(el)
	target := s.scopes.Resolve(rec.Name, el)
	if current == nil || target == nil {
		return rec.References
	}
	var out []span.Location
	for _, ref := range rec.References {
		if !scope.Contains(current, ref.Range) {
			continue
		}
		if s.scopes.Resolve(rec.Name, doc.elementAt(ref.Start)) == target {
			out = append(out, ref)
		}
	}
	return out
}

func (s scopedStrategy) definitionSummary(doc *Document, def span.Location) string {
	summary := s.namespacedStrategy.definitionSummary(doc, def)
	if def.DocumentID != doc.ID {
		return summary
	}
	if el := doc.elementAt(def.Start); s.scopes.IsScope(el) {
		return fmt.Sprintf("%s `%s`, %s", el.Name, el.AttrValue("name"), summary)
	}
	return summary
}
