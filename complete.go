package scriptref

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/scope"
	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/xmltree"
)

const (
	// DefaultCompletionLimit caps completion results when no limit is given.
	DefaultCompletionLimit = 100
	// CheckEvery is the number of candidates between cancellation checks.
	CheckEvery = 32
)

// Completion is one completion candidate.
type Completion struct {
	Name        string
	Detail      string
	ItemType    ItemType
	InsertRange Range
}

// assembler collects deduplicated candidates sharing a prefix.
type assembler struct {
	ctx    context.Context
	prefix string
	limit  int
	insert span.Range

	seen    map[string]bool
	out     []Completion
	visited int
}

func newAssembler(ctx context.Context, prefix string, limit int, insert span.Range) *assembler {
	if limit <= 0 {
		limit = DefaultCompletionLimit
	}
	return &assembler{ctx: ctx, prefix: prefix, limit: limit, insert: insert, seen: make(map[string]bool)}
}

// offer adds a candidate. done is true once the limit is reached or the
// context is cancelled.
func (a *assembler) offer(itemType rules.ItemType, name, detail string) (done bool, err error) {
	a.visited++
	if a.visited%CheckEvery == 0 {
		if err := a.ctx.Err(); err != nil {
			return true, err
		}
	}
	if !strings.HasPrefix(name, a.prefix) {
		return false, nil
	}
	key := string(itemType) + "\x00" + name
	if a.seen[key] {
		return false, nil
	}
	a.seen[key] = true
	a.out = append(a.out, Completion{Name: name, Detail: detail, ItemType: itemType, InsertRange: a.insert})
	return len(a.out) >= a.limit, nil
}

// Complete returns defined names of itemType starting with prefix: first the
// document's own, then those of other open documents, then scanned external
// definitions. On cancellation the candidates gathered so far are returned
// with the context's error.
func (q *QueryBuilder) Complete(ctx context.Context, docID string, itemType ItemType, prefix string, limit int) ([]Completion, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil {
		return nil, nil
	}
	a := newAssembler(ctx, prefix, limit, span.Range{})
	_, err := q.complete(a, doc, itemType, nil)
	return a.out, err
}

// CompleteAt completes the attribute value under pos. The item types come
// from the completion-eligible rules for the attribute and the prefix is the
// part of the value before pos.
func (q *QueryBuilder) CompleteAt(ctx context.Context, docID string, pos Position, limit int) ([]Completion, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	if doc == nil || doc.Meta.Schema == "" {
		return nil, nil
	}
	el := doc.elementAt(pos)
	if el == nil {
		return nil, nil
	}
	attr, ok := el.AttrAt(pos)
	if !ok {
		return nil, nil
	}
	types := q.e.registry.CompletionTypes(rules.Event{
		Schema:    doc.Meta.Schema,
		Element:   el.Name,
		Attribute: attr.Name,
		TypeHint:  q.e.registry.TypeHint(doc.Meta.Schema, el.Name, attr.Name),
		Value:     attr.Value,
		Siblings:  el.AttrMap(),
	})

	prefix := ""
	if start := attr.ValueRange.Start; pos.Line == start.Line {
		runes := []rune(attr.Value)
		n := min(max(pos.Col-start.Col, 0), len(runes))
		prefix = string(runes[:n])
	}

	a := newAssembler(ctx, prefix, limit, attr.ValueRange)
	for _, t := range types {
		done, err := q.complete(a, doc, t, el)
		if err != nil {
			return a.out, err
		}
		if done {
			break
		}
	}
	return a.out, nil
}

// complete feeds every source of itemType candidates to a. at, when set,
// is the element being edited and enables reserved scope names.
func (q *QueryBuilder) complete(a *assembler, doc *Document, itemType rules.ItemType, at *xmltree.Element) (bool, error) {
	r := q.e.resolvers[itemType]
	if r == nil {
		return false, nil
	}
	d := r.Descriptor
	script := doc.Meta.ScriptName

	if s, ok := r.strategy.(scopedStrategy); ok && at != nil {
		for _, name := range []string{scope.This, scope.Parent, scope.Static, scope.Namespace} {
			target := s.scopes.Resolve(name, at)
			if target == nil {
				continue
			}
			if done, err := a.offer(itemType, name, d.DisplayName+" "+target.AttrValue("name")); done || err != nil {
				return done, err
			}
		}
	}

	if ix := doc.indexes[itemType]; ix != nil {
		for _, rec := range ix.Records() {
			if !rec.HasDefinition() {
				continue
			}
			if done, err := a.offer(itemType, d.Local(script, rec.Name), d.DisplayName+" (this document)"); done || err != nil {
				return done, err
			}
		}
	}

	for _, id := range q.e.documentIDs() {
		if id == doc.ID {
			continue
		}
		ix := q.e.docs[id].indexes[itemType]
		if ix == nil {
			continue
		}
		for _, rec := range ix.Records() {
			if !rec.HasDefinition() {
				continue
			}
			if done, err := a.offer(itemType, d.Local(script, rec.Name), d.DisplayName+" ("+filepath.Base(id)+")"); done || err != nil {
				return done, err
			}
		}
	}

	if !d.Resolution.ExternalCapable() {
		return false, nil
	}
	defs, err := q.e.collector.Definitions(itemType)
	if err != nil {
		q.e.logger.Warn("completion: external definitions", "item_type", string(itemType), "error", err)
		return false, nil
	}
	for _, def := range defs {
		if done, err := a.offer(itemType, d.Local(script, def.Name), d.DisplayName+" ("+filepath.Base(def.Path)+")"); done || err != nil {
			return done, err
		}
	}
	return false, nil
}
