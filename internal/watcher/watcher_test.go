package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan []string, want string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return true
				}
			}
		case <-deadline:
			return false
		}
	}
}

func TestWatcher_ReportsScriptChanges(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	ai := filepath.Join(root, "aiscripts")
	require.NoError(t, os.MkdirAll(ai, 0o755))

	changed := make(chan []string, 8)
	w, err := New([]string{"*.bak.xml", "backup"}, func(paths []string) {
		changed <- paths
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root, filepath.Join(root, "missing")))

	script := filepath.Join(ai, "lib.xml")
	require.NoError(t, os.WriteFile(script, []byte(`<aiscript name="lib"/>`), 0o644))
	assert.True(t, collect(t, changed, script, 2*time.Second), "expected %s to be reported", script)

	// Non-script and excluded files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(ai, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ai, "old.bak.xml"), []byte("x"), 0o644))
	select {
	case paths := <-changed:
		for _, p := range paths {
			assert.Equal(t, ".xml", filepath.Ext(p))
			assert.NotEqual(t, "old.bak.xml", filepath.Base(p))
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	changed := make(chan []string, 8)
	w, err := New(nil, func(paths []string) { changed <- paths }, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch(root))

	dir := filepath.Join(root, "ext", "md")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	nested := filepath.Join(dir, "intro.xml")
	require.NoError(t, os.WriteFile(nested, []byte(`<mdscript name="Intro"/>`), 0o644))

	assert.True(t, collect(t, changed, nested, 3*time.Second), "expected nested file to be reported")
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := New([]string{"[unclosed"}, func([]string) {})
	require.Error(t, err)
}

func TestWatcher_Relevant(t *testing.T) {
	t.Parallel()
	w, err := New([]string{"*.tmp.xml"}, func([]string) {})
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.relevant("/x/aiscripts/a.xml"))
	assert.True(t, w.relevant("/x/aiscripts/A.XML"))
	assert.False(t, w.relevant("/x/aiscripts/a.txt"))
	assert.False(t, w.relevant("/x/aiscripts/a.tmp.xml"))
}
