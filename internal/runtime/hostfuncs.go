package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/xmltree"
)

// Sink receives the items a script records.
type Sink interface {
	Definition(itemType, name string, r span.Range)
	Reference(itemType, name string, r span.Range)
}

// elementsToList converts the document's elements, in document order, to a
// Risor list of maps:
//
//	{"index", "name", "parent", "attrs", "ranges", "start_line", "start_col", "end_line", "end_col"}
//
// parent is the index of the parent element or -1. ranges maps each
// attribute name to the range of its value.
func elementsToList(doc *xmltree.Document) object.Object {
	indexOf := make(map[*xmltree.Element]int, len(doc.Elements))
	for i, el := range doc.Elements {
		indexOf[el] = i
	}

	results := make([]object.Object, 0, len(doc.Elements))
	for i, el := range doc.Elements {
		parent := -1
		if el.Parent != nil {
			parent = indexOf[el.Parent]
		}
		attrs := make(map[string]object.Object, len(el.Attrs))
		ranges := make(map[string]object.Object, len(el.Attrs))
		for _, a := range el.Attrs {
			attrs[a.Name] = object.NewString(a.Value)
			ranges[a.Name] = rangeToMap(a.ValueRange)
		}
		m := rangeFields(el.FullRange)
		m["index"] = object.NewInt(int64(i))
		m["name"] = object.NewString(el.Name)
		m["parent"] = object.NewInt(int64(parent))
		m["attrs"] = object.NewMap(attrs)
		m["ranges"] = object.NewMap(ranges)
		results = append(results, object.NewMap(m))
	}
	return object.NewList(results)
}

func rangeFields(r span.Range) map[string]object.Object {
	return map[string]object.Object{
		"start_line": object.NewInt(int64(r.Start.Line)),
		"start_col":  object.NewInt(int64(r.Start.Col)),
		"end_line":   object.NewInt(int64(r.End.Line)),
		"end_col":    object.NewInt(int64(r.End.Col)),
	}
}

func rangeToMap(r span.Range) object.Object {
	return object.NewMap(rangeFields(r))
}

// makeRecordFn creates record_definition / record_reference.
//
// record_definition({"item_type", "name", "start_line", "start_col", "end_line", "end_col"}) → bool
//
// Returns false when item_type or name is empty.
func makeRecordFn(name string, record func(itemType, name string, r span.Range)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		itemType := getString(m, "item_type")
		itemName := getString(m, "name")
		if itemType == "" || itemName == "" {
			return object.NewBool(false)
		}
		record(itemType, itemName, span.Range{
			Start: span.Position{Line: getInt(m, "start_line"), Col: getInt(m, "start_col")},
			End:   span.Position{Line: getInt(m, "end_line"), Col: getInt(m, "end_col")},
		})
		return object.NewBool(true)
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
