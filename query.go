package scriptref

import (
	"fmt"

	"github.com/jward/scriptref/internal/index"
	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/similar"
	"github.com/jward/scriptref/internal/span"
)

// DiagnosticSource tags every diagnostic produced by the engine.
const DiagnosticSource = "scriptref"

// QueryBuilder provides the query API over an Engine. Methods return nil
// with no error when the document is not open or nothing is found.
type QueryBuilder struct {
	e *Engine
}

// Resolution is the item found at a position.
type Resolution struct {
	ItemType     ItemType
	Record       *Record
	Location     Location // the occurrence under the position
	IsDefinition bool
}

// ResolveAt finds the definition or reference at pos in document docID.
func (q *QueryBuilder) ResolveAt(docID string, pos Position) (*Resolution, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}
	return q.resolveAt(doc, pos), nil
}

func (q *QueryBuilder) resolveAt(doc *Document, pos span.Position) *Resolution {
	for _, d := range q.e.registry.Types() {
		ix := doc.indexes[d.ID]
		if ix == nil {
			continue
		}
		if occ, ok := ix.At(pos); ok {
			return &Resolution{
				ItemType:     d.ID,
				Record:       occ.Record,
				Location:     occ.Location,
				IsDefinition: occ.IsDefinition,
			}
		}
	}
	return nil
}

// DefinitionAt returns the definition of the item at pos.
func (q *QueryBuilder) DefinitionAt(docID string, pos Position) (*Location, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}
	res := q.resolveAt(doc, pos)
	if res == nil {
		return nil, nil
	}
	loc, err := q.e.resolvers[res.ItemType].strategy.definition(doc, res.Record, res.Location)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	return loc, nil
}

// References lists an item's definition, when known, followed by its
// references.
type References struct {
	ItemType  ItemType
	Name      string
	Locations []Location
}

// ReferencesAt returns the references of the item at pos.
func (q *QueryBuilder) ReferencesAt(docID string, pos Position) (*References, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}
	res := q.resolveAt(doc, pos)
	if res == nil {
		return nil, nil
	}
	r := q.e.resolvers[res.ItemType]
	def, err := r.strategy.definition(doc, res.Record, res.Location)
	if err != nil {
		return nil, fmt.Errorf("references at: %w", err)
	}
	out := &References{
		ItemType: res.ItemType,
		Name:     r.Descriptor.Local(doc.Meta.ScriptName, res.Record.Name),
	}
	if def != nil {
		out.Locations = append(out.Locations, *def)
	}
	out.Locations = append(out.Locations, r.strategy.references(doc, res.Record, res.Location)...)
	return out, nil
}

// Severity follows the LSP numbering.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is a finding about script content.
type Diagnostic struct {
	Range       Range
	Severity    Severity
	Code        string
	Source      string
	Message     string
	Suggestions []string `json:",omitempty"`
}

// Diagnostics reports undefined references and unused definitions in docID.
// Failures resolving one record are logged and do not stop the rest.
func (q *QueryBuilder) Diagnostics(docID string) ([]Diagnostic, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}

	var out []Diagnostic
	for _, d := range q.e.registry.Types() {
		ix := doc.indexes[d.ID]
		if ix == nil {
			continue
		}
		r := q.e.resolvers[d.ID]
		for _, rec := range ix.Records() {
			out = append(out, q.recordDiagnostics(doc, ix, r, rec)...)
		}
	}
	return out, nil
}

func (q *QueryBuilder) recordDiagnostics(doc *Document, ix *index.Index, r *Resolver, rec *index.Record) []Diagnostic {
	d := r.Descriptor
	name := d.Local(doc.Meta.ScriptName, rec.Name)
	var out []Diagnostic

	if len(rec.References) > 0 && !d.Policy.ReferenceIsExpression {
		var suggestions []string
		var shared *span.Location
		resolved := false
		for _, ref := range rec.References {
			def := shared
			if r.strategy.positional(rec.Name) || !resolved {
				var err error
				def, err = r.strategy.definition(doc, rec, ref)
				if err != nil {
					q.e.logger.Warn("diagnostics: resolving definition", "item_type", string(d.ID), "name", rec.Name, "error", err)
					return out
				}
				shared, resolved = def, true
			}
			if def != nil {
				continue
			}
			if suggestions == nil {
				suggestions = q.similar(doc, ix, d, rec.Name)
			}
			out = append(out, Diagnostic{
				Range:       ref.Range,
				Severity:    SeverityError,
				Code:        "undefined-" + string(d.ID),
				Source:      DiagnosticSource,
				Message:     fmt.Sprintf("%s '%s' is not defined", d.DisplayName, name),
				Suggestions: suggestions,
			})
		}
	}

	if rec.HasDefinition() && len(rec.References) == 0 && !d.Policy.SkipUnused {
		out = append(out, Diagnostic{
			Range:    rec.Definition.Range,
			Severity: SeverityWarning,
			Code:     "unused-" + string(d.ID),
			Source:   DiagnosticSource,
			Message:  fmt.Sprintf("%s '%s' is defined but never used", d.DisplayName, name),
		})
	}
	return out
}

// similar ranks the other names of ix against key, all in local form.
func (q *QueryBuilder) similar(doc *Document, ix *index.Index, d rules.Descriptor, key string) []string {
	var cands []string
	for _, n := range ix.Names() {
		if n != key {
			cands = append(cands, d.Local(doc.Meta.ScriptName, n))
		}
	}
	out := similar.Find(d.Local(doc.Meta.ScriptName, key), cands, similar.DefaultMax)
	if out == nil {
		return []string{}
	}
	return out
}

// FindSimilar ranks the names of itemType in docID by similarity to name.
func (q *QueryBuilder) FindSimilar(docID string, itemType ItemType, name string) ([]string, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}
	ix := doc.indexes[itemType]
	if ix == nil {
		return nil, nil
	}
	var cands []string
	for _, n := range ix.Names() {
		cands = append(cands, q.e.resolvers[itemType].Descriptor.Local(doc.Meta.ScriptName, n))
	}
	return similar.Find(name, cands, similar.DefaultMax), nil
}
