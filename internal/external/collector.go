// Package external collects definitions from script files that are not open
// in the session. Files are discovered under configured roots, searched with
// raw-text patterns derived from the detection rules, and committed to the
// store one file at a time.
package external

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	scriptrt "github.com/jward/scriptref/internal/runtime"
	"github.com/jward/scriptref/internal/rules"
	"github.com/jward/scriptref/internal/scriptmeta"
	"github.com/jward/scriptref/internal/store"
	"github.com/jward/scriptref/internal/xmltree"
)

// CheckEvery is the number of files processed between cancellation checks.
const CheckEvery = 32

// Collector owns the external definition store.
type Collector struct {
	store       *store.Store
	registry    *rules.Registry
	runtime     *scriptrt.Runtime
	logger      *slog.Logger
	concurrency int
	extractors  []extractor

	// scanned holds the paths seen by the last complete workspace pass.
	scanned map[string]bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// WithConcurrency bounds the number of concurrent file reads in a scan.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRuntime runs per-schema extraction scripts on every scanned file in
// addition to the built-in rules.
func WithRuntime(rt *scriptrt.Runtime) Option {
	return func(c *Collector) {
		c.runtime = rt
	}
}

// New creates a Collector writing to s and extracting with reg's
// external-capable definition rules.
func New(s *store.Store, reg *rules.Registry, opts ...Option) *Collector {
	c := &Collector{
		store:       s,
		registry:    reg,
		logger:      slog.Default(),
		concurrency: runtime.NumCPU(),
		scanned:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.extractors = compileExtractors(reg.ExternalDefinitionRules())
	return c
}

// Stats summarizes a workspace scan.
type Stats struct {
	Discovered int
	Indexed    int
	Unchanged  int
	Skipped    int
	Removed    int
	Failed     int
}

// candidate is a discovered file and the schema its folder implies.
type candidate struct {
	path   string
	schema string
}

// ScanWorkspace indexes every script file under roots using a three-phase
// pipeline:
//
//	Phase A (serial):   Discover root/<schema>/*.xml and root/<category>/<schema>/*.xml.
//	Phase B (parallel): Read files into a per-pass cache with bounded concurrency.
//	Phase C (serial):   Sniff, extract, and commit one file at a time.
//
// Cancellation is checked every CheckEvery files in phase C; files committed
// before that point stay committed. Files removed from disk since the last
// complete pass are cleared once a pass completes.
func (c *Collector) ScanWorkspace(ctx context.Context, roots ...string) (Stats, error) {
	var stats Stats

	// ---- Phase A: discovery ----
	cands := c.discover(roots)
	stats.Discovered = len(cands)

	// ---- Phase B: parallel reads ----
	cache, err := c.readAll(ctx, cands)
	if err != nil {
		return stats, err
	}

	// ---- Phase C: serial extraction and commit ----
	found := make(map[string]bool, len(cands))
	for i, cand := range cands {
		if i%CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		// Unreadable files keep whatever they last committed.
		found[cand.path] = true
		content, ok := cache[cand.path]
		if !ok {
			stats.Failed++
			continue
		}

		switch outcome, err := c.indexFile(ctx, cand.path, content, cand.schema, true); {
		case err != nil:
			stats.Failed++
			c.logger.Warn("external scan: skipping file", "path", cand.path, "error", err)
		case outcome == outcomeUnchanged:
			stats.Unchanged++
		case outcome == outcomeSkipped:
			stats.Skipped++
		default:
			stats.Indexed++
		}
	}

	var vanished []string
	for p := range c.scanned {
		if !found[p] {
			vanished = append(vanished, p)
		}
	}
	sort.Strings(vanished)
	if err := c.store.DeleteFiles(vanished); err != nil {
		c.logger.Warn("external scan: clearing removed files", "error", err)
	} else {
		stats.Removed = len(vanished)
	}
	c.scanned = found
	return stats, nil
}

// ScanFile rescans a single file, replacing everything previously recorded
// for it. The schema folder is not consulted. A missing file is cleared.
func (c *Collector) ScanFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c.ClearFile(path)
	}
	if err != nil {
		c.logger.Warn("external scan: unreadable file", "path", path, "error", err)
		return nil
	}
	if _, err := c.indexFile(ctx, path, content, "", false); err != nil {
		return fmt.Errorf("external: scan %s: %w", path, err)
	}
	return nil
}

// ClearFile removes every definition sourced from path.
func (c *Collector) ClearFile(path string) error {
	if err := c.store.DeleteFileData(path); err != nil {
		return fmt.Errorf("external: clear %s: %w", path, err)
	}
	delete(c.scanned, path)
	return nil
}

// ClearAll removes every external definition.
func (c *Collector) ClearAll() error {
	if err := c.store.DeleteAll(); err != nil {
		return fmt.Errorf("external: clear all: %w", err)
	}
	c.scanned = make(map[string]bool)
	return nil
}

// Lookup returns the first external definition of name, or nil.
func (c *Collector) Lookup(itemType rules.ItemType, name string) (*store.Definition, error) {
	defs, err := c.store.DefinitionsByName(string(itemType), name)
	if err != nil {
		return nil, fmt.Errorf("external: lookup %s %q: %w", itemType, name, err)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return defs[0], nil
}

// Definitions returns every external definition of itemType.
func (c *Collector) Definitions(itemType rules.ItemType) ([]*store.Definition, error) {
	defs, err := c.store.DefinitionsByType(string(itemType))
	if err != nil {
		return nil, fmt.Errorf("external: definitions %s: %w", itemType, err)
	}
	return defs, nil
}

// discover lists candidate files under each root. Unreadable roots and
// folders are logged and skipped.
func (c *Collector) discover(roots []string) []candidate {
	schemas := c.registry.Schemas()
	var out []candidate
	for _, root := range roots {
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			c.logger.Warn("external scan: unreadable root", "path", root, "error", err)
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name())
			if schema, ok := scriptmeta.KnownSchema(e.Name(), schemas); ok {
				out = append(out, c.listXML(dir, schema)...)
				continue
			}
			// Category folder: look one level deeper.
			sub, err := os.ReadDir(dir)
			if err != nil {
				c.logger.Warn("external scan: unreadable folder", "path", dir, "error", err)
				continue
			}
			for _, s := range sub {
				if !s.IsDir() {
					continue
				}
				if schema, ok := scriptmeta.KnownSchema(s.Name(), schemas); ok {
					out = append(out, c.listXML(filepath.Join(dir, s.Name()), schema)...)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func (c *Collector) listXML(dir, schema string) []candidate {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("external scan: unreadable folder", "path", dir, "error", err)
		return nil
	}
	var out []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		out = append(out, candidate{path: filepath.Join(dir, e.Name()), schema: schema})
	}
	return out
}

// readAll reads every candidate once. Read failures are logged and the file
// is left out of the cache.
func (c *Collector) readAll(ctx context.Context, cands []candidate) (map[string][]byte, error) {
	cache := make(map[string][]byte, len(cands))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, cand := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(cand.path)
			if err != nil {
				c.logger.Warn("external scan: unreadable file", "path", cand.path, "error", err)
				return nil
			}
			mu.Lock()
			cache[cand.path] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeUnchanged
	outcomeSkipped
)

// indexFile sniffs, extracts, and commits one file. wantSchema filters by
// folder schema when non-empty. skipUnchanged consults the stored hash.
func (c *Collector) indexFile(ctx context.Context, path string, content []byte, wantSchema string, skipUnchanged bool) (outcome, error) {
	meta, ok := scriptmeta.Sniff(content)
	if !ok || (wantSchema != "" && meta.Schema != wantSchema) {
		// Whatever the file used to define no longer applies.
		if err := c.store.DeleteFileData(path); err != nil {
			return outcomeSkipped, err
		}
		return outcomeSkipped, nil
	}

	hash := store.ContentHash(content)
	if skipUnchanged {
		existing, err := c.store.FileByPath(path)
		if err != nil {
			return outcomeSkipped, err
		}
		if existing != nil && existing.Hash == hash {
			return outcomeUnchanged, nil
		}
	}

	batch := store.NewBatchedStore(c.store, store.File{
		Path:        path,
		Schema:      meta.Schema,
		ScriptName:  meta.ScriptName,
		Hash:        hash,
		LastIndexed: time.Now(),
	})
	if err := c.extract(batch, content, meta); err != nil {
		return outcomeSkipped, err
	}
	if c.runtime != nil && c.runtime.Enabled() {
		if err := c.runScript(ctx, batch, path, content, meta); err != nil {
			c.logger.Warn("external scan: extraction script failed", "path", path, "error", err)
		}
	}
	if err := c.store.CommitBatch(batch); err != nil {
		return outcomeSkipped, err
	}
	return outcomeIndexed, nil
}

func (c *Collector) runScript(ctx context.Context, batch *store.BatchedStore, path string, content []byte, meta scriptmeta.Metadata) error {
	tree, err := xmltree.Parse(path, content)
	if tree == nil || tree.Root == nil {
		return err
	}
	rt := c.runtime.ForStore(batch)
	return rt.RunExtraction(ctx, scriptrt.Document{Tree: tree, Meta: meta}, &batchSink{
		batch:    batch,
		registry: c.registry,
		meta:     meta,
	})
}
