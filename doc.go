// Package scriptref tracks and resolves referenced items in XML game scripts:
// labels, interrupt handlers, action libraries, mission cues and libraries.
// It answers go-to-definition, find-references, diagnostics, completion,
// hover, and similar-name queries over the open documents and over script
// files scanned from disk.
//
// # Pipeline
//
//  1. Open: each document is parsed into an element tree. Every attribute
//     is classified by the detection rule registry and recorded as a
//     definition or reference in the document's per-type index. An optional
//     Risor script (extract/<schema>.risor) may record more.
//
//  2. Scan: the external roots are searched for script files. Definitions
//     of external-capable item types are extracted from raw text and kept in
//     an in-memory SQLite store, replaced per file on rescan.
//
//  3. Query: a Resolver per item type answers queries using one of four
//     strategies. Basic names resolve inside the document. External names
//     fall back to other open documents and then to the scanned files.
//     Namespaced names are keyed by md.<script>.<name>. Scoped names also
//     resolve the reserved words this, parent, static and namespace against
//     the enclosing cue.
//
// # Usage
//
//	e, err := scriptref.New()
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_ = e.SetRoots("/game/unpacked", "/game/extensions")
//	_, err = e.ScanWorkspace(ctx)
//	_, err = e.OpenDocument(ctx, "/work/aiscripts/order.trade.xml", content)
//
//	q := e.Query()
//	loc, err := q.DefinitionAt("/work/aiscripts/order.trade.xml", scriptref.Position{Line: 10, Col: 24})
//
// # Concurrency
//
// Every Engine and QueryBuilder method holds the Engine's lock, so operations
// never interleave. Workspace scans and completion check their context every
// 32 items and stop early, keeping whatever was already committed.
package scriptref
