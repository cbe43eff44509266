// Package lspconv converts engine results to Language Server Protocol
// types so an editor integration can pass them through unchanged.
package lspconv

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/jward/scriptref"
)

// Position converts an engine position. Columns are passed through as
// character offsets.
func Position(p scriptref.Position) protocol.Position {
	return protocol.Position{Line: clamp(p.Line), Character: clamp(p.Col)}
}

// FromPosition is the inverse of Position.
func FromPosition(p protocol.Position) scriptref.Position {
	return scriptref.Position{Line: int(p.Line), Col: int(p.Character)}
}

func Range(r scriptref.Range) protocol.Range {
	return protocol.Range{Start: Position(r.Start), End: Position(r.End)}
}

// URI returns the file URI for a document ID. IDs that already carry a
// scheme are kept as they are.
func URI(docID string) protocol.DocumentURI {
	if strings.Contains(docID, "://") {
		return protocol.DocumentURI(docID)
	}
	return protocol.DocumentURI(uri.File(docID))
}

// DocumentID maps a document URI back to the ID the engine was given.
func DocumentID(u protocol.DocumentURI) string {
	if strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return uri.URI(u).Filename()
	}
	return string(u)
}

func Location(l scriptref.Location) protocol.Location {
	return protocol.Location{URI: URI(l.DocumentID), Range: Range(l.Range)}
}

func Locations(ls []scriptref.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(ls))
	for _, l := range ls {
		out = append(out, Location(l))
	}
	return out
}

// Diagnostic converts a finding. Suggestions travel in Data so a code action
// can offer them.
func Diagnostic(d scriptref.Diagnostic) protocol.Diagnostic {
	pd := protocol.Diagnostic{
		Range:    Range(d.Range),
		Severity: severity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
	if len(d.Suggestions) > 0 {
		pd.Data = d.Suggestions
	}
	return pd
}

func Diagnostics(ds []scriptref.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, Diagnostic(d))
	}
	return out
}

// PublishParams wraps the diagnostics of one document.
func PublishParams(docID string, ds []scriptref.Diagnostic) protocol.PublishDiagnosticsParams {
	return protocol.PublishDiagnosticsParams{URI: URI(docID), Diagnostics: Diagnostics(ds)}
}

func severity(s scriptref.Severity) protocol.DiagnosticSeverity {
	switch s {
	case scriptref.SeverityError:
		return protocol.DiagnosticSeverityError
	case scriptref.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	}
	return protocol.DiagnosticSeverityInformation
}

// CompletionItem converts a candidate. Accepting it replaces the whole
// attribute value.
func CompletionItem(c scriptref.Completion) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:  c.Name,
		Kind:   protocol.CompletionItemKindReference,
		Detail: c.Detail,
	}
	if !c.InsertRange.IsZero() {
		item.TextEdit = &protocol.TextEdit{Range: Range(c.InsertRange), NewText: c.Name}
	}
	return item
}

// CompletionList converts candidates. A list cut short by the limit is
// marked incomplete so the client asks again as the prefix grows.
func CompletionList(cs []scriptref.Completion, limit int) *protocol.CompletionList {
	list := &protocol.CompletionList{
		IsIncomplete: limit > 0 && len(cs) >= limit,
		Items:        make([]protocol.CompletionItem, 0, len(cs)),
	}
	for _, c := range cs {
		list.Items = append(list.Items, CompletionItem(c))
	}
	return list
}

func Hover(h *scriptref.Hover) *protocol.Hover {
	if h == nil {
		return nil
	}
	r := Range(h.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: h.Contents},
		Range:    &r,
	}
}

func clamp(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}
