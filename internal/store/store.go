package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the SQLite data access layer for externally defined items.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath. MemoryPath opens an in-memory
// database pinned to a single connection, since every connection to
// ":memory:" sees its own empty database.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000"
	if dbPath == MemoryPath {
		dsn = dbPath + "?_foreign_keys=ON"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  schema_kind     TEXT NOT NULL,
  script_name     TEXT NOT NULL,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS definitions (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  item_type       TEXT NOT NULL,
  name            TEXT NOT NULL,
  local_name      TEXT NOT NULL,
  script_name     TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE INDEX IF NOT EXISTS idx_files_schema ON files(schema_kind);
CREATE INDEX IF NOT EXISTS idx_definitions_file ON definitions(file_id);
CREATE INDEX IF NOT EXISTS idx_definitions_type_name ON definitions(item_type, name);
`

// DeleteFileData transactionally removes a file and every definition sourced
// from it. Unknown paths are a no-op.
func (s *Store) DeleteFileData(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileTx(tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFiles removes several files in one transaction.
func (s *Store) DeleteFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(paths))
	args := stringsToArgs(paths)
	if _, err := tx.Exec(
		"DELETE FROM definitions WHERE file_id IN (SELECT id FROM files WHERE path IN ("+placeholders+"))", args...,
	); err != nil {
		return fmt.Errorf("delete definitions: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE path IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return tx.Commit()
}

// DeleteAll empties both tables.
func (s *Store) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM definitions", "DELETE FROM files"} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("delete all: %w", err)
		}
	}
	return tx.Commit()
}

func deleteFileTx(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(
		"DELETE FROM definitions WHERE file_id IN (SELECT id FROM files WHERE path = ?)", path,
	); err != nil {
		return fmt.Errorf("delete definitions: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
