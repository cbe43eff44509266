package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scriptref/internal/rules"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
roots:
  unpacked: game/unpacked
  extensions: /abs/extensions
scripts_dir: scripts
scan:
  concurrency: 2
watch:
  debounce: 50ms
  exclude: ["*.bak.xml"]
policies:
  cue:
    skip_unused: false
    reference_is_expression: true
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "game/unpacked"), cfg.Roots.Unpacked)
	assert.Equal(t, "/abs/extensions", cfg.Roots.Extensions)
	assert.Equal(t, filepath.Join(dir, "scripts"), cfg.ScriptsDir)
	assert.Equal(t, 2, cfg.Scan.Concurrency)
	assert.Equal(t, 100, cfg.Completion.Limit, "unset values keep their defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"*.bak.xml"}, cfg.Watch.Exclude)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	assert.Equal(t, map[rules.ItemType]rules.Policy{
		rules.Cue: {ReferenceIsExpression: true},
	}, cfg.ItemPolicies())
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cases := map[string]string{
		"negative.yaml": "scan:\n  concurrency: -1\n",
		"level.yaml":    "log_level: loud\n",
		"syntax.yaml":   "roots: [\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	t.Parallel()
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.Roots.Unpacked = "/data/unpacked"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRoots_Paths(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Roots{}.Paths())
	assert.Equal(t, []string{"/a"}, Roots{Extensions: "/a"}.Paths())
	assert.Equal(t, []string{"/u", "/e"}, Roots{Unpacked: "/u", Extensions: "/e"}.Paths())
}
