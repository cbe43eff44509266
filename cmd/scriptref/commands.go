package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/scriptref"
	"github.com/jward/scriptref/internal/config"
	"github.com/jward/scriptref/internal/lspconv"
	"github.com/jward/scriptref/internal/watcher"
)

var (
	flagLimit int
	flagLevel string
	flagForce bool
)

func init() {
	initCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing config file")
	completeCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum candidates (default: completion.limit from config)")
	detailsCmd.Flags().StringVar(&flagLevel, "level", scriptref.DetailFull.String(), "detail level: full|hover|external|definition-only|reference-only")
}

// session is an engine scanned from the configured roots, shared by the
// command helpers.
type session struct {
	cfg    *config.Config
	engine *scriptref.Engine
	stats  scriptref.ScanStats
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	engine, stats, err := openEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, engine: engine, stats: stats}, nil
}

// withFile opens a session plus one script and hands both to fn.
func withFile(cmd *cobra.Command, file string, fn func(s *session, docID string) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return outputError(cmd, err)
	}
	defer s.engine.Close()
	docID, err := openFile(ctx, s.engine, file)
	if err != nil {
		return outputError(cmd, err)
	}
	return fn(s, docID)
}

// --- Commands ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults and any root flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !flagForce {
			return outputError(cmd, fmt.Errorf("%s already exists (use --force to overwrite)", path))
		}
		cfg := config.Default()
		if err := applyOverrides(cfg); err != nil {
			return outputError(cmd, err)
		}
		if err := cfg.Validate(); err != nil {
			return outputError(cmd, err)
		}
		if err := config.Save(cfg, path); err != nil {
			return outputError(cmd, err)
		}
		return outputResult(cmd, CLIResult{Command: "init", Results: []string{path}})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured roots and report what was indexed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return outputError(cmd, err)
		}
		defer s.engine.Close()
		return outputResult(cmd, CLIResult{Command: "scan", Results: statsToCLI(s.stats)})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Report undefined references and unused definitions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return outputError(cmd, err)
		}
		defer s.engine.Close()

		var docIDs []string
		for _, file := range args {
			docID, err := openFile(ctx, s.engine, file)
			if err != nil {
				return outputError(cmd, err)
			}
			docIDs = append(docIDs, docID)
		}
		result, err := checkDocuments(s.engine, docIDs)
		if err != nil {
			return outputError(cmd, err)
		}
		return outputResult(cmd, result)
	},
}

// checkDocuments diagnoses every document once all of them are open, so
// they can resolve names against each other.
func checkDocuments(engine *scriptref.Engine, docIDs []string) (CLIResult, error) {
	q := engine.Query()
	diags := []CLIDiagnostic{}
	var params []protocol.PublishDiagnosticsParams
	for _, id := range docIDs {
		ds, err := q.Diagnostics(id)
		if err != nil {
			return CLIResult{}, fmt.Errorf("checking %s: %w", id, err)
		}
		for _, d := range ds {
			diags = append(diags, diagnosticToCLI(id, d))
		}
		params = append(params, lspconv.PublishParams(id, ds))
	}
	return CLIResult{Command: "check", Results: diags, lsp: params}, nil
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the item at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[1], args[2])
		if err != nil {
			return outputError(cmd, err)
		}
		return withFile(cmd, args[0], func(s *session, docID string) error {
			loc, err := s.engine.Query().DefinitionAt(docID, pos)
			if err != nil {
				return outputError(cmd, err)
			}
			locs := []scriptref.Location{}
			if loc != nil {
				locs = append(locs, *loc)
			}
			return outputResult(cmd, CLIResult{
				Command: "definition",
				Results: locationsToCLI(locs),
				lsp:     lspconv.Locations(locs),
			})
		})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "List the definition and references of the item at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[1], args[2])
		if err != nil {
			return outputError(cmd, err)
		}
		return withFile(cmd, args[0], func(s *session, docID string) error {
			refs, err := s.engine.Query().ReferencesAt(docID, pos)
			if err != nil {
				return outputError(cmd, err)
			}
			if refs == nil {
				return outputResult(cmd, CLIResult{Command: "references", Results: []CLILocation{}, lsp: []protocol.Location{}})
			}
			total := len(refs.Locations)
			return outputResult(cmd, CLIResult{
				Command: "references",
				Results: CLIReferences{
					ItemType:  string(refs.ItemType),
					Name:      refs.Name,
					Locations: locationsToCLI(refs.Locations),
				},
				TotalCount: &total,
				lsp:        lspconv.Locations(refs.Locations),
			})
		})
	},
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Describe the item at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[1], args[2])
		if err != nil {
			return outputError(cmd, err)
		}
		return withFile(cmd, args[0], func(s *session, docID string) error {
			h, err := s.engine.Query().HoverAt(docID, pos)
			if err != nil {
				return outputError(cmd, err)
			}
			result := CLIResult{Command: "hover"}
			if h != nil {
				r := locationToCLI(scriptref.Location{DocumentID: docID, Range: h.Range})
				result.Results = CLIHover{Contents: h.Contents, Range: r}
				result.lsp = lspconv.Hover(h)
			}
			return outputResult(cmd, result)
		})
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <file> <item-type> <name>",
	Short: "Render the details of a named item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := scriptref.ParseDetailLevel(flagLevel)
		if err != nil {
			return outputError(cmd, err)
		}
		return withFile(cmd, args[0], func(s *session, docID string) error {
			itemType, err := parseItemType(s.engine, args[1])
			if err != nil {
				return outputError(cmd, err)
			}
			text, err := s.engine.Query().ItemDetails(docID, itemType, args[2], level)
			if err != nil {
				return outputError(cmd, err)
			}
			return outputResult(cmd, CLIResult{Command: "details", Results: text})
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <file> <line> <col>",
	Short: "Complete the attribute value at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[1], args[2])
		if err != nil {
			return outputError(cmd, err)
		}
		return withFile(cmd, args[0], func(s *session, docID string) error {
			limit := flagLimit
			if limit <= 0 {
				limit = s.cfg.Completion.Limit
			}
			cs, err := s.engine.Query().CompleteAt(cmd.Context(), docID, pos, limit)
			if err != nil {
				return outputError(cmd, err)
			}
			return outputResult(cmd, CLIResult{
				Command: "complete",
				Results: completionsToCLI(cs),
				lsp:     lspconv.CompletionList(cs, limit),
			})
		})
	},
}

var similarCmd = &cobra.Command{
	Use:   "similar <file> <item-type> <name>",
	Short: "Suggest names in a script that resemble a name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(cmd, args[0], func(s *session, docID string) error {
			itemType, err := parseItemType(s.engine, args[1])
			if err != nil {
				return outputError(cmd, err)
			}
			names, err := s.engine.Query().FindSimilar(docID, itemType, args[2])
			if err != nil {
				return outputError(cmd, err)
			}
			if names == nil {
				names = []string{}
			}
			return outputResult(cmd, CLIResult{Command: "similar", Results: names})
		})
	},
}

var externalsCmd = &cobra.Command{
	Use:   "externals <item-type>",
	Short: "List the definitions of an item type found in the roots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return outputError(cmd, err)
		}
		defer s.engine.Close()
		itemType, err := parseItemType(s.engine, args[0])
		if err != nil {
			return outputError(cmd, err)
		}
		defs, err := s.engine.ExternalDefinitions(itemType)
		if err != nil {
			return outputError(cmd, err)
		}
		total := len(defs)
		return outputResult(cmd, CLIResult{Command: "externals", Results: definitionsToCLI(defs), TotalCount: &total})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Re-check scripts whenever they or the roots change",
	Long:  "Watches the configured roots and the given scripts. Changed root files are rescanned, and the given scripts are re-checked after every change. Runs until interrupted.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return outputError(cmd, err)
		}
		defer s.engine.Close()
		logger, err := newLogger(s.cfg)
		if err != nil {
			return outputError(cmd, err)
		}

		var docIDs []string
		for _, file := range args {
			docID, err := openFile(ctx, s.engine, file)
			if err != nil {
				return outputError(cmd, err)
			}
			docIDs = append(docIDs, docID)
		}
		if err := emitCheck(cmd, s.engine, docIDs); err != nil {
			return err
		}

		onChange := func(paths []string) {
			for _, p := range paths {
				if slices.Contains(docIDs, p) {
					if _, err := openFile(ctx, s.engine, p); err != nil {
						logger.Warn("reopen failed", "path", p, "error", err)
					}
					continue
				}
				if !underRoot(p, s.cfg.Roots.Paths()) {
					continue
				}
				if err := s.engine.ScanFile(ctx, p); err != nil {
					logger.Warn("rescan failed", "path", p, "error", err)
				}
			}
			if err := emitCheck(cmd, s.engine, docIDs); err != nil {
				logger.Warn("check failed", "error", err)
			}
		}

		w, err := watcher.New(s.cfg.Watch.Exclude, onChange,
			watcher.WithDebounce(s.cfg.Watch.Debounce),
			watcher.WithLogger(logger))
		if err != nil {
			return outputError(cmd, err)
		}
		defer w.Close()

		dirs := append([]string(nil), s.cfg.Roots.Paths()...)
		for _, id := range docIDs {
			dirs = appendUnique(dirs, filepath.Dir(id))
		}
		if err := w.Watch(dirs...); err != nil {
			return outputError(cmd, err)
		}
		logger.Info("watching", "roots", len(dirs), "scripts", len(docIDs))

		<-ctx.Done()
		return nil
	},
}

// emitCheck writes one check result per change; json output is one object
// per line so a consumer can stream it.
func emitCheck(cmd *cobra.Command, engine *scriptref.Engine, docIDs []string) error {
	result, err := checkDocuments(engine, docIDs)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	switch flagFormat {
	case "text":
		fmt.Fprintf(w, "--- %d problems\n", resultLen(result.Results))
		return outputResultText(w, result)
	case "lsp":
		return json.NewEncoder(w).Encode(result.lsp)
	}
	return json.NewEncoder(w).Encode(result)
}

// --- Helpers ---

func parseItemType(engine *scriptref.Engine, s string) (scriptref.ItemType, error) {
	t := scriptref.ItemType(s)
	if _, ok := engine.Registry().Descriptor(t); !ok {
		var known []string
		for _, d := range engine.Registry().Types() {
			known = append(known, string(d.ID))
		}
		return "", fmt.Errorf("unknown item type %q (known: %v)", s, known)
	}
	return t, nil
}

// underRoot reports whether path lies inside one of roots.
func underRoot(path string, roots []string) bool {
	for _, r := range roots {
		rel, err := filepath.Rel(r, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	switch flagFormat {
	case "text":
		return outputResultText(w, result)
	case "lsp":
		return outputResultLSP(w, result)
	}
	return writeJSON(w, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	_ = writeJSON(cmd.OutOrStdout(), CLIResult{Command: cmd.Name(), Error: err.Error()})
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
