package store

// DataStore is the interface for extraction-phase data access. Both Store
// (direct SQLite) and BatchedStore (per-file buffering during a scan)
// implement this interface.
type DataStore interface {
	InsertDefinition(def *Definition) (int64, error)

	// Cross-file lookups used while extracting.
	DefinitionsByName(itemType, name string) ([]*Definition, error)
	DefinitionsByType(itemType string) ([]*Definition, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
