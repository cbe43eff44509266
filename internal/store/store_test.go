package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(MemoryPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// commitFile is a helper that replaces path's data with the given definitions.
func commitFile(t *testing.T, s *Store, path string, defs ...Definition) *BatchedStore {
	t.Helper()
	batch := NewBatchedStore(s, File{
		Path: path, Schema: "aiscripts", ScriptName: filepath.Base(path),
		Hash: "abc123", LastIndexed: time.Now().Truncate(time.Second),
	})
	for i := range defs {
		_, err := batch.InsertDefinition(&defs[i])
		require.NoError(t, err)
	}
	require.NoError(t, s.CommitBatch(batch))
	return batch
}

func def(itemType, name string, line int) Definition {
	return Definition{
		ItemType: itemType, Name: name, LocalName: name, ScriptName: "s",
		StartLine: line, StartCol: 15, EndLine: line, EndCol: 15 + len(name),
	}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "definitions"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestNewStore_OnDisk(t *testing.T) {
	t.Parallel()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate())

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// Files
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	f := &File{Path: "/x/aiscripts/a.xml", Schema: "aiscripts", ScriptName: "a", Hash: "h"}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.FileByPath("/x/aiscripts/a.xml")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "aiscripts", got.Schema)
	assert.Equal(t, "a", got.ScriptName)
	assert.Equal(t, "h", got.Hash)
}

func TestFile_ByPathNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.FileByPath("/missing.xml")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFilePaths_Sorted(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/b.xml")
	commitFile(t, s, "/a.xml")

	paths, err := s.FilePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.xml", "/b.xml"}, paths)
}

// =============================================================================
// Definitions
// =============================================================================

func TestDefinition_ByName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/lib_foo.xml", def("action", "lib.Foo", 2), def("action", "lib.Bar", 9))

	defs, err := s.DefinitionsByName("action", "lib.Foo")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "/lib_foo.xml", defs[0].Path)
	assert.Equal(t, 2, defs[0].StartLine)
	assert.Positive(t, defs[0].ID)

	defs, err = s.DefinitionsByName("handler", "lib.Foo")
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestDefinition_ByNameOrderedByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/z.xml", def("action", "dup", 1))
	commitFile(t, s, "/a.xml", def("action", "dup", 7))

	defs, err := s.DefinitionsByName("action", "dup")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "/a.xml", defs[0].Path)
}

func TestDefinition_ByTypeAndPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/a.xml", def("action", "b", 1), def("handler", "h", 2))
	commitFile(t, s, "/b.xml", def("action", "a", 1))

	defs, err := s.DefinitionsByType("action")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)

	defs, err = s.DefinitionsByPath("/a.xml")
	require.NoError(t, err)
	assert.Len(t, defs, 2)

	n, err := s.DefinitionCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// =============================================================================
// Replacement & deletion
// =============================================================================

func TestCommitBatch_ReplacesFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/a.xml", def("action", "old", 1))
	commitFile(t, s, "/a.xml", def("action", "new", 1))

	defs, err := s.DefinitionsByPath("/a.xml")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "new", defs[0].Name)

	old, err := s.DefinitionsByName("action", "old")
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestDeleteFileData_KeepsOtherFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/f.xml", def("action", "shared", 1))
	commitFile(t, s, "/g.xml", def("action", "shared", 3))

	require.NoError(t, s.DeleteFileData("/f.xml"))

	defs, err := s.DefinitionsByName("action", "shared")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "/g.xml", defs[0].Path)

	f, err := s.FileByPath("/f.xml")
	require.NoError(t, err)
	assert.Nil(t, f)

	// Unknown paths are a no-op.
	require.NoError(t, s.DeleteFileData("/never.xml"))
}

func TestDeleteFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/a.xml", def("action", "a", 1))
	commitFile(t, s, "/b.xml", def("action", "b", 1))
	commitFile(t, s, "/c.xml", def("action", "c", 1))

	require.NoError(t, s.DeleteFiles([]string{"/a.xml", "/c.xml"}))
	require.NoError(t, s.DeleteFiles(nil))

	paths, err := s.FilePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/b.xml"}, paths)
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/a.xml", def("action", "a", 1))
	require.NoError(t, s.DeleteAll())

	n, err := s.DefinitionCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("<aiscript/>"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, ContentHash([]byte("<aiscript/>")))
	assert.NotEqual(t, a, ContentHash([]byte("<mdscript/>")))
}
