package scriptref

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWorkspaceEngine scans testdata/workspace and opens the documents under
// testdata/workspace/open.
func newWorkspaceEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	ws, err := filepath.Abs(filepath.Join("testdata", "workspace"))
	require.NoError(t, err)

	e := newTestEngine(t, WithScanConcurrency(2))
	require.NoError(t, e.SetRoots(filepath.Join(ws, "unpacked"), filepath.Join(ws, "extensions")))
	stats, err := e.ScanWorkspace(t.Context())
	require.NoError(t, err)
	require.Equal(t, 6, stats.Discovered)
	require.Equal(t, 6, stats.Indexed)

	for _, name := range []string{"order.trade.xml", "story.xml"} {
		path := filepath.Join(ws, "open", name)
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		openDoc(t, e, path, string(content))
	}
	return e, ws
}

func TestIntegration_TradeOrderDiagnostics(t *testing.T) {
	t.Parallel()
	e, ws := newWorkspaceEngine(t)
	doc := filepath.Join(ws, "open", "order.trade.xml")

	diags, err := e.Query().Diagnostics(doc)
	require.NoError(t, err)

	type summary struct {
		Code    string
		Line    int
		Message string
	}
	var got []summary
	for _, d := range diags {
		got = append(got, summary{d.Code, d.Range.Start.Line, d.Message})
	}
	assert.Equal(t, []summary{
		{"undefined-label", 13, "Label 'trde' is not defined"},
		{"unused-label", 14, "Label 'unused' is defined but never used"},
		{"undefined-action", 11, "Action 'lib.Refule' is not defined"},
		{"undefined-handler", 5, "Handler 'PatrolOnly' is not defined"},
	}, got)
	assert.Equal(t, []string{"trade"}, diags[0].Suggestions)
}

func TestIntegration_TradeOrderDefinitions(t *testing.T) {
	t.Parallel()
	e, ws := newWorkspaceEngine(t)
	doc := filepath.Join(ws, "open", "order.trade.xml")
	q := e.Query()

	loc, err := q.DefinitionAt(doc, at(9, 40))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, filepath.Join(ws, "unpacked", "aiscripts", "lib.common.xml"), loc.DocumentID)
	assert.Equal(t, rng(2, 17, 2, 27), loc.Range)

	// Handler from the extensions root, category layout.
	loc, err = q.DefinitionAt(doc, at(4, 20))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, filepath.Join(ws, "extensions", "ego_dlc_split", "aiscripts", "interrupt.split.xml"), loc.DocumentID)
}

func TestIntegration_StoryResolves(t *testing.T) {
	t.Parallel()
	e, ws := newWorkspaceEngine(t)
	doc := filepath.Join(ws, "open", "story.xml")
	q := e.Query()

	diags, err := q.Diagnostics(doc)
	require.NoError(t, err)
	assert.Empty(t, diags)

	loc, err := q.DefinitionAt(doc, at(5, 30))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, filepath.Join(ws, "unpacked", "md", "factions.xml"), loc.DocumentID)
	assert.Equal(t, rng(3, 19, 3, 34), loc.Range)

	loc, err = q.DefinitionAt(doc, at(14, 40))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, doc, loc.DocumentID)
	assert.Equal(t, rng(3, 15, 3, 20), loc.Range, "parent of Next is Start")

	loc, err = q.DefinitionAt(doc, at(9, 26))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, rng(3, 15, 3, 20), loc.Range, "this inside Start is Start")
}

func TestIntegration_CompleteCues(t *testing.T) {
	t.Parallel()
	e, ws := newWorkspaceEngine(t)
	doc := filepath.Join(ws, "open", "story.xml")

	got, err := e.Query().Complete(t.Context(), doc, Cue, "md.Factions.", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"md.Factions.Init", "md.Factions.Ready"}, completionNames(got))
}
