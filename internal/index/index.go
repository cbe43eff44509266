// Package index is the per-document, per-item-type name index.
package index

import (
	"github.com/jward/scriptref/internal/span"
)

// Record tracks one name within a document index. Definition is nil until a
// non-empty definition is recorded.
type Record struct {
	Name       string
	ScriptName string
	Definition *span.Location
	References []span.Location
}

// HasDefinition reports whether the record carries a definition.
func (r *Record) HasDefinition() bool {
	return r.Definition != nil
}

// Occurrence is the result of a position lookup.
type Occurrence struct {
	Record       *Record
	Location     span.Location
	IsDefinition bool
}

// Index maps names to records, remembering first-seen order.
type Index struct {
	records map[string]*Record
	order   []string
}

// New returns an empty index.
func New() *Index {
	return &Index{records: make(map[string]*Record)}
}

func (ix *Index) record(name, script string) *Record {
	rec, ok := ix.records[name]
	if !ok {
		rec = &Record{Name: name, ScriptName: script}
		ix.records[name] = rec
		ix.order = append(ix.order, name)
	}
	return rec
}

// RecordDefinition sets the definition of name unless one is already set.
// Empty locations never set a definition but still create the record.
func (ix *Index) RecordDefinition(name, script string, loc span.Location) *Record {
	rec := ix.record(name, script)
	if rec.Definition == nil && !loc.IsEmpty() {
		l := loc
		rec.Definition = &l
	}
	return rec
}

// RecordReference appends loc to the references of name unless a reference
// with the same range and document is already present.
func (ix *Index) RecordReference(name, script string, loc span.Location) *Record {
	rec := ix.record(name, script)
	for _, existing := range rec.References {
		if existing == loc {
			return rec
		}
	}
	rec.References = append(rec.References, loc)
	return rec
}

// Get returns the record for name, or nil.
func (ix *Index) Get(name string) *Record {
	return ix.records[name]
}

// Records returns the records in first-seen order.
func (ix *Index) Records() []*Record {
	out := make([]*Record, 0, len(ix.order))
	for _, name := range ix.order {
		out = append(out, ix.records[name])
	}
	return out
}

// Names returns record names in first-seen order.
func (ix *Index) Names() []string {
	return append([]string(nil), ix.order...)
}

// Len returns the number of records.
func (ix *Index) Len() int {
	return len(ix.order)
}

// At scans every record for a definition or reference range containing pos.
func (ix *Index) At(pos span.Position) (Occurrence, bool) {
	for _, name := range ix.order {
		rec := ix.records[name]
		if rec.Definition != nil && rec.Definition.Contains(pos) {
			return Occurrence{Record: rec, Location: *rec.Definition, IsDefinition: true}, true
		}
		for _, ref := range rec.References {
			if ref.Contains(pos) {
				return Occurrence{Record: rec, Location: ref}, true
			}
		}
	}
	return Occurrence{}, false
}
