package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_InsertUsesFakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore(s, File{Path: "/a.xml", Schema: "md", ScriptName: "A"})

	d := def("cue", "md.A.Start", 3)
	id, err := batch.InsertDefinition(&d)
	require.NoError(t, err)
	assert.Negative(t, id)
	assert.Equal(t, "/a.xml", d.Path)
	assert.Equal(t, 1, batch.Len())

	// Nothing reaches SQLite until commit.
	n, err := s.DefinitionCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBatchedStore_DefinitionsByName_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/other.xml", def("action", "shared", 1))
	commitFile(t, s, "/a.xml", def("action", "shared", 9))

	// Rescanning /a.xml: its stored row is stale and hidden.
	batch := NewBatchedStore(s, File{Path: "/a.xml", Schema: "aiscripts", ScriptName: "a"})
	d := def("action", "shared", 4)
	_, err := batch.InsertDefinition(&d)
	require.NoError(t, err)

	defs, err := batch.DefinitionsByName("action", "shared")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "/other.xml", defs[0].Path)
	assert.Equal(t, 4, defs[1].StartLine)
}

func TestCommitBatch_RealIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := commitFile(t, s, "/a.xml", def("action", "x", 1), def("action", "y", 2))

	assert.Positive(t, batch.File.ID)
	for _, d := range batch.Definitions {
		assert.Positive(t, d.ID)
		assert.Equal(t, batch.File.ID, d.FileID)
	}
}

func TestBatchedStore_DefinitionsByType_HidesOwnCommittedRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitFile(t, s, "/other.xml", def("action", "lib.Other", 1))
	commitFile(t, s, "/lib.xml", def("action", "lib.Old", 2))

	batch := NewBatchedStore(s, File{Path: "/lib.xml", Schema: "aiscripts", ScriptName: "lib"})
	d := def("action", "lib.New", 5)
	_, err := batch.InsertDefinition(&d)
	require.NoError(t, err)

	defs, err := batch.DefinitionsByType("action")
	require.NoError(t, err)
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"lib.Other", "lib.New"}, names)
	assert.Same(t, s, batch.Committed())
}
