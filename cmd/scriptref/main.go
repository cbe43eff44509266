package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/scriptref"
	"github.com/jward/scriptref/internal/config"
	"github.com/jward/scriptref/internal/lspconv"
)

var (
	flagConfig     string
	flagFormat     string
	flagUnpacked   string
	flagExtensions string
	flagScriptsDir string
	flagLogLevel   string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "scriptref",
	Short:         "Reference checking for XML game scripts",
	Long:          "scriptref indexes labels, actions, handlers, cues and libraries in AI and mission director scripts, resolves references against the unpacked game files, and reports undefined or unused names. All line and column numbers are 0-based.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: "+config.FileName+" in the working directory)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text|lsp")
	pf.StringVar(&flagUnpacked, "unpacked", "", "unpacked game files root (overrides config)")
	pf.StringVar(&flagExtensions, "extensions", "", "extensions root (overrides config)")
	pf.StringVar(&flagScriptsDir, "scripts-dir", "", "directory holding extraction scripts (overrides config)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(externalsCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig reads the config file and applies flag overrides. A missing
// default file falls back to the defaults; a missing --config file is an
// error.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, err = config.LoadOrDefault(config.FileName)
	}
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath is the file --config names, or the default in the working
// directory.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.FileName
}

// applyOverrides copies the root and log flags into cfg.
func applyOverrides(cfg *config.Config) error {
	for _, o := range []struct {
		flag string
		dst  *string
	}{
		{flagUnpacked, &cfg.Roots.Unpacked},
		{flagExtensions, &cfg.Roots.Extensions},
		{flagScriptsDir, &cfg.ScriptsDir},
	} {
		if o.flag == "" {
			continue
		}
		abs, err := filepath.Abs(o.flag)
		if err != nil {
			return fmt.Errorf("resolving path %q: %w", o.flag, err)
		}
		*o.dst = abs
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return nil
}

// newLogger writes structured logs to stderr so stdout carries only results.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// openEngine builds an engine from cfg and scans the configured roots.
func openEngine(ctx context.Context, cfg *config.Config) (*scriptref.Engine, scriptref.ScanStats, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, scriptref.ScanStats{}, err
	}
	opts := []scriptref.Option{
		scriptref.WithLogger(logger),
		scriptref.WithScanConcurrency(cfg.Scan.Concurrency),
		scriptref.WithPolicies(cfg.ItemPolicies()),
	}
	if cfg.ScriptsDir != "" {
		opts = append(opts, scriptref.WithScriptsDir(cfg.ScriptsDir))
	}
	engine, err := scriptref.New(opts...)
	if err != nil {
		return nil, scriptref.ScanStats{}, fmt.Errorf("creating engine: %w", err)
	}

	roots := cfg.Roots.Paths()
	if len(roots) == 0 {
		logger.Warn("no roots configured; only opened files are indexed")
		return engine, scriptref.ScanStats{}, nil
	}
	if err := engine.SetRoots(roots...); err != nil {
		engine.Close()
		return nil, scriptref.ScanStats{}, err
	}
	start := time.Now()
	stats, err := engine.ScanWorkspace(ctx)
	if err != nil {
		engine.Close()
		return nil, stats, fmt.Errorf("scanning: %w", err)
	}
	logger.Info("scanned roots",
		"files", stats.Indexed+stats.Unchanged,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return engine, stats, nil
}

// openFile reads a script from disk and opens it under its absolute path.
func openFile(ctx context.Context, engine *scriptref.Engine, file string) (string, error) {
	path, err := resolveFilePath(file)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := engine.OpenDocument(ctx, path, content)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	if doc.ParseErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s is malformed: %s\n", path, doc.ParseErr)
	}
	return path, nil
}

// resolveFilePath converts a file argument, either a path or a file URI as
// an editor would pass it, to an absolute path.
func resolveFilePath(file string) (string, error) {
	if strings.HasPrefix(file, "file://") {
		file = lspconv.DocumentID(protocol.DocumentURI(file))
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// parsePosition parses <line> <col> arguments as a protocol position.
func parsePosition(line, col string) (scriptref.Position, error) {
	l, err := parseIntArg(line, "line")
	if err != nil {
		return scriptref.Position{}, err
	}
	c, err := parseIntArg(col, "col")
	if err != nil {
		return scriptref.Position{}, err
	}
	return lspconv.FromPosition(protocol.Position{Line: uint32(l), Character: uint32(c)}), nil
}
