package store

import "fmt"

// CommitBatch replaces everything stored for the batch's file with the
// buffered data in a single transaction: the old file row and its
// definitions are deleted, then the file and the buffered definitions are
// inserted with real IDs. Readers never observe the file half cleared.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	batch.mu.Lock()
	defer batch.mu.Unlock()

	if err := deleteFileTx(tx, batch.File.Path); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	fileID, err := insertFileTx(tx, &batch.File)
	if err != nil {
		return fmt.Errorf("commit batch: file %q: %w", batch.File.Path, err)
	}
	batch.File.ID = fileID

	for i := range batch.Definitions {
		def := &batch.Definitions[i]
		def.FileID = fileID
		realID, err := insertDefinitionTx(tx, def)
		if err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", def.Name, err)
		}
		def.ID = realID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}
