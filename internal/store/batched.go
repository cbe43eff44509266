package store

import "sync"

// BatchedStore buffers the definitions extracted from one file in memory
// using fake (negative) IDs. It implements DataStore so extraction scripts
// can write to it without knowing whether they're hitting SQLite or the
// buffer. CommitBatch replaces the file's stored data with the buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Read queries are passed through to the underlying Store.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex

	File        File
	Definitions []Definition

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore for file f backed by s for reads.
func NewBatchedStore(s *Store, f File) *BatchedStore {
	return &BatchedStore{
		store:      s,
		File:       f,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertDefinition(def *Definition) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	def.ID = fakeID
	def.Path = b.File.Path
	b.Definitions = append(b.Definitions, *def)
	return fakeID, nil
}

// DefinitionsByName merges committed definitions from other files with the
// buffered ones. Committed rows from this batch's own file are left out,
// since the commit replaces them.
func (b *BatchedStore) DefinitionsByName(itemType, name string) ([]*Definition, error) {
	dbDefs, err := b.store.DefinitionsByName(itemType, name)
	if err != nil {
		return nil, err
	}
	out := dbDefs[:0]
	for _, d := range dbDefs {
		if d.Path != b.File.Path {
			out = append(out, d)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Definitions {
		if b.Definitions[i].ItemType == itemType && b.Definitions[i].Name == name {
			out = append(out, &b.Definitions[i])
		}
	}
	return out, nil
}

// DefinitionsByType is DefinitionsByName for every name of itemType.
func (b *BatchedStore) DefinitionsByType(itemType string) ([]*Definition, error) {
	dbDefs, err := b.store.DefinitionsByType(itemType)
	if err != nil {
		return nil, err
	}
	out := dbDefs[:0]
	for _, d := range dbDefs {
		if d.Path != b.File.Path {
			out = append(out, d)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Definitions {
		if b.Definitions[i].ItemType == itemType {
			out = append(out, &b.Definitions[i])
		}
	}
	return out, nil
}

// Committed returns the underlying Store.
func (b *BatchedStore) Committed() *Store {
	return b.store
}

// Len returns the number of buffered definitions.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Definitions)
}
