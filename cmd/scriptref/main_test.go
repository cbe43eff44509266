package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scriptref"
	"github.com/jward/scriptref/internal/config"
	"github.com/jward/scriptref/internal/lspconv"
)

// The commands share package-level flag variables, so these tests run
// serially and reset the flags before every invocation.

func workspace(t *testing.T) string {
	t.Helper()
	ws, err := filepath.Abs(filepath.Join("..", "..", "testdata", "workspace"))
	require.NoError(t, err)
	return ws
}

func resetFlags() {
	flagConfig = ""
	flagFormat = "json"
	flagUnpacked = ""
	flagExtensions = ""
	flagScriptsDir = ""
	flagLogLevel = "error"
	flagLimit = 0
	flagLevel = scriptref.DetailFull.String()
	flagForce = false
	errorHandled = false
}

// run executes the root command against the test workspace roots.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	ws := workspace(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--unpacked", filepath.Join(ws, "unpacked"),
		"--extensions", filepath.Join(ws, "extensions"),
		"--log-level", "error",
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// ===========================================================================
// Helpers
// ===========================================================================

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"json", "text", "lsp"} {
		assert.NoError(t, validateFormat(f))
	}
	err := validateFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json, text, lsp")
}

func TestParseIntArg(t *testing.T) {
	n, err := parseIntArg("12", "line")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parseIntArg("-1", "line")
	assert.ErrorContains(t, err, "non-negative")
	_, err = parseIntArg("x", "col")
	assert.ErrorContains(t, err, `invalid col "x"`)
}

func TestUnderRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "game", "unpacked")
	assert.True(t, underRoot(filepath.Join(root, "aiscripts", "a.xml"), []string{root}))
	assert.False(t, underRoot(filepath.Join(root+"2", "a.xml"), []string{root}))
	assert.False(t, underRoot(filepath.Join(string(filepath.Separator), "game", "a.xml"), []string{root}))
	assert.False(t, underRoot(filepath.Join(root, "a.xml"), nil))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptref.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots:\n  unpacked: game\ncompletion:\n  limit: 20\n"), 0o644))

	flagConfig = path
	flagExtensions = filepath.Join(dir, "ext")
	flagLogLevel = "debug"
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "game"), cfg.Roots.Unpacked)
	assert.Equal(t, filepath.Join(dir, "ext"), cfg.Roots.Extensions)
	assert.Equal(t, 20, cfg.Completion.Limit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	resetFlags()
	flagConfig = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestResolveFilePath_FileURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.trade.xml")
	got, err := resolveFilePath(string(lspconv.URI(path)))
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

// ===========================================================================
// Commands
// ===========================================================================

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scriptref.yaml")
	out, err := run(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace(t), "unpacked"), cfg.Roots.Unpacked)
	assert.Equal(t, config.Default().Completion.Limit, cfg.Completion.Limit)

	_, err = run(t, "--config", path, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "--config", path, "init", "--force")
	require.NoError(t, err)
}

func TestScanCommand(t *testing.T) {
	out, err := run(t, "scan")
	require.NoError(t, err)

	var result struct {
		Command string   `json:"command"`
		Results CLIStats `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "scan", result.Command)
	assert.Equal(t, 6, result.Results.Discovered)
	assert.Equal(t, 6, result.Results.Indexed)
}

func TestCheckCommand_JSON(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "check", file)
	require.NoError(t, err)

	var result struct {
		Results []CLIDiagnostic `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 4)

	first := result.Results[0]
	assert.Equal(t, file, first.File)
	assert.Equal(t, "undefined-label", first.Code)
	assert.Equal(t, "error", first.Severity)
	assert.Equal(t, 13, first.StartLine)
	assert.Equal(t, []string{"trade"}, first.Suggestions)
	assert.Equal(t, "warning", result.Results[1].Severity)
}

func TestCheckCommand_Text(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "text", "check", file)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "[undefined-label] (did you mean trade?)"), lines[0])
	assert.Contains(t, lines[3], "Handler 'PatrolOnly' is not defined")
}

func TestCheckCommand_LSP(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "lsp", "check", file)
	require.NoError(t, err)

	var params []struct {
		URI         string `json:"uri"`
		Diagnostics []struct {
			Severity int    `json:"severity"`
			Code     string `json:"code"`
			Source   string `json:"source"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &params))
	require.Len(t, params, 1)
	assert.True(t, strings.HasPrefix(params[0].URI, "file://"))
	require.Len(t, params[0].Diagnostics, 4)
	assert.Equal(t, 1, params[0].Diagnostics[0].Severity)
	assert.Equal(t, "scriptref", params[0].Diagnostics[0].Source)
}

func TestDefinitionCommand(t *testing.T) {
	ws := workspace(t)
	out, err := run(t, "definition", filepath.Join(ws, "open", "order.trade.xml"), "9", "40")
	require.NoError(t, err)

	var result struct {
		Results []CLILocation `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, filepath.Join(ws, "unpacked", "aiscripts", "lib.common.xml"), result.Results[0].File)
	assert.Equal(t, 2, result.Results[0].StartLine)
	assert.Equal(t, 17, result.Results[0].StartCol)
}

func TestDefinitionCommand_FileURI(t *testing.T) {
	ws := workspace(t)
	file := string(lspconv.URI(filepath.Join(ws, "open", "order.trade.xml")))
	out, err := run(t, "definition", file, "9", "40")
	require.NoError(t, err)

	var result struct {
		Results []CLILocation `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Results, 1)
	assert.Equal(t, 2, result.Results[0].StartLine)
}

func TestDefinitionCommand_NothingAtPosition(t *testing.T) {
	out, err := run(t, "definition", filepath.Join(workspace(t), "open", "order.trade.xml"), "0", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `"results": []`)
}

func TestReferencesCommand(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "text", "references", file, "10", "20")
	require.NoError(t, err)
	assert.Equal(t, "label trade\n"+file+":10:19\n"+file+":12:21\n", out)
}

func TestHoverCommand(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "lsp", "hover", file, "10", "20")
	require.NoError(t, err)

	var hover struct {
		Contents struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hover))
	assert.Equal(t, "markdown", hover.Contents.Kind)
	assert.Contains(t, hover.Contents.Value, "`trade`")
}

func TestCompleteCommand(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	// Caret after "lib" in ref="lib.Undock".
	out, err := run(t, "complete", file, "9", "41")
	require.NoError(t, err)

	var result struct {
		Results []CLICompletion `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	var names []string
	for _, c := range result.Results {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "lib.Undock")
	assert.Contains(t, names, "lib.Refuel")
}

func TestSimilarCommand(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "text", "similar", file, "label", "trad")
	require.NoError(t, err)
	assert.Equal(t, "trade\ntrde\n", out)
}

func TestExternalsCommand(t *testing.T) {
	out, err := run(t, "externals", "handler")
	require.NoError(t, err)

	var result struct {
		Results    []CLIDefinition `json:"results"`
		TotalCount int             `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	var names []string
	for _, d := range result.Results {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "AttackHandler")
	assert.Contains(t, names, "SplitHandler")
	assert.Equal(t, len(result.Results), result.TotalCount)
}

func TestExternalsCommand_UnknownType(t *testing.T) {
	out, err := run(t, "externals", "widget")
	require.Error(t, err)
	assert.True(t, errorHandled)
	assert.Contains(t, out, `unknown item type \"widget\"`)
}

func TestDetailsCommand(t *testing.T) {
	file := filepath.Join(workspace(t), "open", "order.trade.xml")
	out, err := run(t, "--format", "text", "details", "--level", "definition-only", file, "action", "lib.Undock")
	require.NoError(t, err)
	assert.Contains(t, out, "lib.common.xml")
	assert.NotContains(t, out, "### Referenced")
}
