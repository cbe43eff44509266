package scriptref

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"github.com/jward/scriptref/internal/external"
	"github.com/jward/scriptref/internal/index"
	"github.com/jward/scriptref/internal/rules"
	scriptrt "github.com/jward/scriptref/internal/runtime"
	"github.com/jward/scriptref/internal/scope"
	"github.com/jward/scriptref/internal/scriptmeta"
	"github.com/jward/scriptref/internal/span"
	"github.com/jward/scriptref/internal/store"
	"github.com/jward/scriptref/internal/xmltree"
)

// Engine is the context object shared by every query: the rule registry, one
// Resolver per item type, the open documents, and the external definition
// store. Item types are fixed once New returns.
type Engine struct {
	mu sync.Mutex

	logger    *slog.Logger
	registry  *rules.Registry
	store     *store.Store
	runtime   *scriptrt.Runtime
	collector *external.Collector
	scopes    *scope.Resolver
	resolvers map[rules.ItemType]*Resolver

	scriptsDir  string
	scriptsFS   fs.FS
	concurrency int
	policies    map[rules.ItemType]rules.Policy

	roots []string
	docs  map[string]*Document
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for skipped files and script failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRegistry replaces the built-in detection rules.
func WithRegistry(r *rules.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithScriptsDir enables per-schema Risor extraction scripts loaded from dir.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads extraction scripts from fsys instead of from disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScanConcurrency bounds concurrent file reads during workspace scans.
func WithScanConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithPolicies overrides the diagnostic policy of the given item types.
func WithPolicies(p map[ItemType]Policy) Option {
	return func(e *Engine) {
		e.policies = p
	}
}

// New creates an Engine backed by an in-memory store.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		docs:   make(map[string]*Document),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = rules.Default(e.logger)
	}
	for id, p := range e.policies {
		if err := e.registry.SetPolicy(id, p); err != nil {
			return nil, fmt.Errorf("scriptref: %w", err)
		}
	}

	s, err := store.NewStore(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("scriptref: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("scriptref: migrate: %w", err)
	}
	e.store = s

	rtOpts := []scriptrt.RuntimeOption{scriptrt.WithRuntimeLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, scriptrt.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = scriptrt.NewRuntime(s, e.scriptsDir, rtOpts...)

	colOpts := []external.Option{external.WithLogger(e.logger), external.WithRuntime(e.runtime)}
	if e.concurrency > 0 {
		colOpts = append(colOpts, external.WithConcurrency(e.concurrency))
	}
	e.collector = external.New(s, e.registry, colOpts...)
	e.scopes = scope.New()

	e.resolvers = make(map[rules.ItemType]*Resolver)
	for _, d := range e.registry.Types() {
		e.resolvers[d.ID] = newResolver(e, d)
	}
	return e, nil
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Query returns a QueryBuilder over the Engine.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{e: e}
}

// Registry returns the detection rule registry.
func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// Resolver returns the resolver owning itemType, or nil.
func (e *Engine) Resolver(itemType ItemType) *Resolver {
	return e.resolvers[itemType]
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// Document is an open script with its per-type indexes.
type Document struct {
	ID   string
	Meta scriptmeta.Metadata
	Tree *xmltree.Document
	// ParseErr is set when the content was malformed; Tree then holds the
	// elements read before the error.
	ParseErr error

	indexes map[rules.ItemType]*index.Index
}

// Index returns the document's index for itemType, or nil when the document
// has no names of that type.
func (d *Document) Index(itemType ItemType) *index.Index {
	return d.indexes[itemType]
}

func (d *Document) indexFor(itemType rules.ItemType) *index.Index {
	ix, ok := d.indexes[itemType]
	if !ok {
		ix = index.New()
		d.indexes[itemType] = ix
	}
	return ix
}

func (d *Document) elementAt(pos span.Position) *xmltree.Element {
	if d.Tree == nil {
		return nil
	}
	return d.Tree.ElementAt(pos)
}

// OpenDocument parses content and indexes it under id, replacing any
// previous version. Malformed content is indexed up to the first syntax
// error. Content without script metadata is kept but yields no names.
func (e *Engine) OpenDocument(ctx context.Context, id string, content []byte) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tree, err := xmltree.Parse(id, content)
	doc := &Document{
		ID:       id,
		Tree:     tree,
		ParseErr: err,
		indexes:  make(map[rules.ItemType]*index.Index),
	}
	if err != nil {
		e.logger.Debug("document is malformed", "document", id, "error", err)
	}

	meta, ok := documentMetadata(tree, content)
	if !ok {
		e.docs[id] = doc
		return doc, nil
	}
	doc.Meta = meta

	for _, el := range tree.Elements {
		siblings := el.AttrMap()
		for _, a := range el.Attrs {
			rule, ok := e.registry.Classify(rules.Event{
				Schema:    meta.Schema,
				Element:   el.Name,
				Attribute: a.Name,
				TypeHint:  e.registry.TypeHint(meta.Schema, el.Name, a.Name),
				Value:     a.Value,
				Siblings:  siblings,
			})
			if !ok {
				continue
			}
			e.record(doc, rule.ItemType, rule.Class, a.Value, a.ValueRange)
		}
	}

	if e.runtime.Enabled() && tree.Root != nil {
		sink := &documentSink{e: e, doc: doc}
		if err := e.runtime.RunExtraction(ctx, scriptrt.Document{Tree: tree, Meta: meta}, sink); err != nil {
			e.logger.Warn("extraction script failed", "document", id, "error", err)
		}
	}

	e.docs[id] = doc
	return doc, nil
}

func documentMetadata(tree *xmltree.Document, content []byte) (scriptmeta.Metadata, bool) {
	if tree != nil && tree.Root != nil {
		if meta, ok := scriptmeta.FromRoot(tree.Root.Name, tree.Root.AttrValue("name")); ok {
			return meta, true
		}
	}
	return scriptmeta.Sniff(content)
}

// record adds one classified value to doc. Values that are not plain names
// and types without a resolver are ignored.
func (e *Engine) record(doc *Document, itemType rules.ItemType, class rules.Class, value string, r span.Range) {
	res := e.resolvers[itemType]
	if res == nil {
		return
	}
	name, ok := rules.Name(value)
	if !ok {
		return
	}
	key := res.strategy.qualify(doc.Meta.ScriptName, name)
	loc := span.Location{DocumentID: doc.ID, Range: r}
	ix := doc.indexFor(itemType)
	if class == rules.Definition {
		ix.RecordDefinition(key, doc.Meta.ScriptName, loc)
	} else {
		ix.RecordReference(key, doc.Meta.ScriptName, loc)
	}
}

// documentSink feeds names recorded by an extraction script into a document.
type documentSink struct {
	e   *Engine
	doc *Document
}

func (s *documentSink) Definition(itemType, name string, r span.Range) {
	s.e.record(s.doc, rules.ItemType(itemType), rules.Definition, name, r)
}

func (s *documentSink) Reference(itemType, name string, r span.Range) {
	s.e.record(s.doc, rules.ItemType(itemType), rules.Reference, name, r)
}

// CloseDocument discards id's indexes.
func (e *Engine) CloseDocument(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docs, id)
}

// Document returns the open document id, or nil.
func (e *Engine) Document(id string) *Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs[id]
}

// Documents returns the IDs of the open documents, sorted.
func (e *Engine) Documents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.documentIDs()
}

func (e *Engine) documentIDs() []string {
	ids := make([]string, 0, len(e.docs))
	for id := range e.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// openDefinition finds a definition of key in an open document other than
// exclude.
func (e *Engine) openDefinition(itemType rules.ItemType, key, exclude string) *span.Location {
	for _, id := range e.documentIDs() {
		if id == exclude {
			continue
		}
		ix := e.docs[id].indexes[itemType]
		if ix == nil {
			continue
		}
		if rec := ix.Get(key); rec != nil && rec.Definition != nil {
			loc := *rec.Definition
			return &loc
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// External definitions
// ---------------------------------------------------------------------------

// SetRoots replaces the external roots and clears every external definition.
// Call ScanWorkspace afterwards to repopulate.
func (e *Engine) SetRoots(roots ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.collector.ClearAll(); err != nil {
		return fmt.Errorf("scriptref: set roots: %w", err)
	}
	e.roots = append([]string(nil), roots...)
	return nil
}

// Roots returns the configured external roots.
func (e *Engine) Roots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.roots...)
}

// ScanWorkspace indexes every script file under the roots. On cancellation
// the files committed so far stay indexed.
func (e *Engine) ScanWorkspace(ctx context.Context) (ScanStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats, err := e.collector.ScanWorkspace(ctx, e.roots...)
	if err != nil {
		return stats, fmt.Errorf("scriptref: scan workspace: %w", err)
	}
	e.logger.Debug("workspace scanned",
		"discovered", stats.Discovered, "indexed", stats.Indexed,
		"unchanged", stats.Unchanged, "skipped", stats.Skipped, "removed", stats.Removed)
	return stats, nil
}

// ScanFile rescans one file on disk after a change notification.
func (e *Engine) ScanFile(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.ScanFile(ctx, path)
}

// ClearFile drops the external definitions sourced from path.
func (e *Engine) ClearFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.ClearFile(path)
}

// ExternalDefinitions lists the scanned definitions of itemType by name.
func (e *Engine) ExternalDefinitions(itemType ItemType) ([]*Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.Definitions(itemType)
}

func definitionLocation(d *store.Definition) span.Location {
	return span.Location{
		DocumentID: d.Path,
		Range: span.Range{
			Start: span.Position{Line: d.StartLine, Col: d.StartCol},
			End:   span.Position{Line: d.EndLine, Col: d.EndCol},
		},
	}
}
