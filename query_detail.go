package scriptref

import (
	"fmt"
	"strings"

	"github.com/jward/scriptref/internal/index"
	"github.com/jward/scriptref/internal/span"
)

// DetailLevel selects the sections of item detail text.
type DetailLevel int

const (
	// DetailFull shows the name, the definition and the reference count.
	DetailFull DetailLevel = iota
	// DetailHover is the same as DetailFull.
	DetailHover
	// DetailExternal shows the name and the definition only.
	DetailExternal
	DetailDefinitionOnly
	DetailReferenceOnly
)

var detailLevelNames = []string{"full", "hover", "external", "definition-only", "reference-only"}

func (l DetailLevel) String() string {
	if l >= 0 && int(l) < len(detailLevelNames) {
		return detailLevelNames[l]
	}
	return fmt.Sprintf("DetailLevel(%d)", int(l))
}

// ParseDetailLevel parses a level name.
func ParseDetailLevel(s string) (DetailLevel, error) {
	for i, n := range detailLevelNames {
		if n == s {
			return DetailLevel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown detail level %q", s)
}

// Hover is the detail text for the item under a position.
type Hover struct {
	Contents string
	Range    Range
}

// HoverAt renders hover text for the item at pos.
func (q *QueryBuilder) HoverAt(docID string, pos Position) (*Hover, error) {
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
	text, err := q.details(doc, res.ItemType, res.Record, res.Location, DetailHover)
	if err != nil {
		return nil, fmt.Errorf("hover at: %w", err)
	}
	return &Hover{Contents: text, Range: res.Location.Range}, nil
}

// ItemDetails renders detail text for name of itemType as seen from docID.
// Names without a record in the document are still looked up externally.
func (q *QueryBuilder) ItemDetails(docID string, itemType ItemType, name string, level DetailLevel) (string, error) {
	q.e.mu.Lock()
	defer q.e.mu.Unlock()
	doc := q.e.docs[docID]
	r := q.e.resolvers[itemType]
	if doc == nil || r == nil {
		return "", nil
	}
	key := r.strategy.qualify(doc.Meta.ScriptName, name)
	var rec *index.Record
	if ix := doc.indexes[itemType]; ix != nil {
		rec = ix.Get(key)
	}
	if rec == nil {
		rec = &index.Record{Name: key, ScriptName: doc.Meta.ScriptName}
	}
	at := span.Location{DocumentID: doc.ID}
	switch {
	case rec.Definition != nil:
		at = *rec.Definition
	case len(rec.References) > 0:
		at = rec.References[0]
	}
	text, err := q.details(doc, itemType, rec, at, level)
	if err != nil {
		return "", fmt.Errorf("item details: %w", err)
	}
	return text, nil
}

// details renders markdown:
//
//	**Label** `start`
//
//	### Defined
//	line 3, column 15
//
//	### Referenced
//	2 references
func (q *QueryBuilder) details(doc *Document, itemType ItemType, rec *index.Record, at span.Location, level DetailLevel) (string, error) {
	r := q.e.resolvers[itemType]
	var b strings.Builder

	if level != DetailDefinitionOnly && level != DetailReferenceOnly {
		fmt.Fprintf(&b, "**%s** `%s`\n\n", r.Descriptor.DisplayName, r.Descriptor.Local(doc.Meta.ScriptName, rec.Name))
	}

	if level != DetailReferenceOnly {
		def, err := r.strategy.definition(doc, rec, at)
		if err != nil {
			return "", err
		}
		b.WriteString("### Defined\n")
		if def != nil {
			b.WriteString(r.strategy.definitionSummary(doc, *def))
		} else {
			b.WriteString("not defined")
		}
		b.WriteString("\n")
	}

	if level != DetailExternal && level != DetailDefinitionOnly {
		if level != DetailReferenceOnly {
			b.WriteString("\n")
		}
		n := len(r.strategy.references(doc, rec, at))
		b.WriteString("### Referenced\n")
		switch n {
		case 0:
			b.WriteString("no references")
		case 1:
			b.WriteString("1 reference")
		default:
			fmt.Fprintf(&b, "%d references", n)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
