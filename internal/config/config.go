// Package config loads the scriptref YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jward/scriptref/internal/rules"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".scriptref.yaml"

// Config is the on-disk configuration.
type Config struct {
	Roots      Roots                   `yaml:"roots"`
	ScriptsDir string                  `yaml:"scripts_dir,omitempty"`
	Scan       Scan                    `yaml:"scan"`
	Completion Completion              `yaml:"completion"`
	Watch      Watch                   `yaml:"watch"`
	Policies   map[string]rules.Policy `yaml:"policies,omitempty"`
	LogLevel   string                  `yaml:"log_level"`
}

// Roots are the two external-definition roots.
type Roots struct {
	Unpacked   string `yaml:"unpacked"`
	Extensions string `yaml:"extensions,omitempty"`
}

// Paths returns the configured roots, skipping empty ones.
func (r Roots) Paths() []string {
	var out []string
	for _, p := range []string{r.Unpacked, r.Extensions} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Scan struct {
	Concurrency int `yaml:"concurrency"`
}

type Completion struct {
	Limit int `yaml:"limit"`
}

type Watch struct {
	Debounce time.Duration `yaml:"debounce"`
	Exclude  []string      `yaml:"exclude,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Scan:       Scan{Concurrency: 8},
		Completion: Completion{Limit: 100},
		Watch:      Watch{Debounce: 200 * time.Millisecond},
		LogLevel:   "info",
	}
}

// Load reads path over the defaults. Relative roots and scripts_dir are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must not be negative")
	}
	if c.Completion.Limit < 0 {
		return fmt.Errorf("completion.limit must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// ItemPolicies converts the policy overrides to item type keys.
func (c *Config) ItemPolicies() map[rules.ItemType]rules.Policy {
	if len(c.Policies) == 0 {
		return nil
	}
	out := make(map[rules.ItemType]rules.Policy, len(c.Policies))
	for k, p := range c.Policies {
		out[rules.ItemType(k)] = p
	}
	return out
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Roots.Unpacked = abs(c.Roots.Unpacked)
	c.Roots.Extensions = abs(c.Roots.Extensions)
	c.ScriptsDir = abs(c.ScriptsDir)
}
