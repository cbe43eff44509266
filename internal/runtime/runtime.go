package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/scriptref/internal/scriptmeta"
	"github.com/jward/scriptref/internal/store"
	"github.com/jward/scriptref/internal/xmltree"
)

// Runtime embeds a Risor VM and exposes a parsed script document plus
// recording host functions to user extraction scripts. Scripts let a
// workspace teach the engine about item types the built-in rules miss.
type Runtime struct {
	store      store.DataStore
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log object.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime wired to the given store and scripts directory.
// s may be nil, in which case the store host functions are not exposed.
func NewRuntime(s store.DataStore, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ForStore returns a copy of r whose store host functions read s. A scan
// binds each file's BatchedStore so lookups see the file as it will be
// committed.
func (r *Runtime) ForStore(s store.DataStore) *Runtime {
	cp := *r
	cp.store = s
	return &cp
}

// Enabled reports whether a script source is configured at all.
func (r *Runtime) Enabled() bool {
	return r.fsys != nil || r.scriptsDir != ""
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// Document is what an extraction script sees.
type Document struct {
	Tree *xmltree.Document
	Meta scriptmeta.Metadata
}

// RunExtraction runs the extraction script for doc's schema, if one exists,
// feeding recorded items to sink. A missing script is not an error.
func (r *Runtime) RunExtraction(ctx context.Context, doc Document, sink Sink) error {
	if !r.Enabled() {
		return nil
	}
	path := ExtractionScriptPath(doc.Meta.Schema)
	src, err := r.LoadScript(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.eval(ctx, src, path, DocumentGlobals(doc, sink))
}

// DocumentGlobals returns the per-document globals of an extraction run.
func DocumentGlobals(doc Document, sink Sink) map[string]any {
	return map[string]any{
		"document_id":       doc.Tree.ID,
		"script_name":       doc.Meta.ScriptName,
		"schema":            doc.Meta.Schema,
		"elements":          elementsToList(doc.Tree),
		"record_definition": makeRecordFn("record_definition", sink.Definition),
		"record_reference":  makeRecordFn("record_reference", sink.Reference),
	}
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(label, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on it. Otherwise, uses
// os.ReadFile with scriptsDir as the base directory. Missing scripts yield
// an error wrapping fs.ErrNotExist.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ExtractionScriptPath returns the path to a schema's extraction script.
func ExtractionScriptPath(schema string) string {
	return filepath.Join("extract", schema+".risor")
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(label string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger.With("script", label)}),
	}

	// Expose the store if available (nil during some tests).
	if r.store != nil {
		globals["definitions_by_name"] = makeDefinitionsByNameFn(r.store)
		globals["definitions_by_type"] = makeDefinitionsByTypeFn(r.store)
		// db_query reads committed rows only.
		if db := committed(r.store); db != nil {
			globals["db_query"] = makeDBQueryFn(db)
		}
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func committed(s store.DataStore) *store.Store {
	switch v := s.(type) {
	case *store.Store:
		return v
	case *store.BatchedStore:
		return v.Committed()
	}
	return nil
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
