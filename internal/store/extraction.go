package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	id, err := insertFileTx(s.db, f)
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	var hash sql.NullString
	var indexed sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, path, schema_kind, script_name, hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Schema, &f.ScriptName, &hash, &indexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.Hash = hash.String
	f.LastIndexed = indexed.Time
	return f, nil
}

// FilePaths returns every indexed path in lexical order.
func (s *Store) FilePaths() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("file paths: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// --- Definition operations ---

func (s *Store) InsertDefinition(def *Definition) (int64, error) {
	id, err := insertDefinitionTx(s.db, def)
	if err != nil {
		return 0, err
	}
	def.ID = id
	return id, nil
}

// DefinitionCols is the column list for definition queries.
const DefinitionCols = `d.id, d.file_id, d.item_type, d.name, d.local_name, d.script_name, f.path,
	d.start_line, d.start_col, d.end_line, d.end_col`

const definitionFrom = ` FROM definitions d JOIN files f ON f.id = d.file_id `

func scanDefinition(scanner interface{ Scan(...any) error }) (*Definition, error) {
	d := &Definition{}
	err := scanner.Scan(
		&d.ID, &d.FileID, &d.ItemType, &d.Name, &d.LocalName, &d.ScriptName, &d.Path,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// DefinitionsByName returns the definitions of itemType keyed by name,
// ordered by source path then position.
func (s *Store) DefinitionsByName(itemType, name string) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+DefinitionCols+definitionFrom+
			"WHERE d.item_type = ? AND d.name = ? ORDER BY f.path, d.start_line, d.start_col",
		itemType, name,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions by name: %w", err)
	}
	return defs, nil
}

// DefinitionsByType returns every definition of itemType ordered by name.
func (s *Store) DefinitionsByType(itemType string) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+DefinitionCols+definitionFrom+
			"WHERE d.item_type = ? ORDER BY d.name, f.path, d.start_line",
		itemType,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions by type: %w", err)
	}
	return defs, nil
}

// DefinitionsByPath returns every definition sourced from path.
func (s *Store) DefinitionsByPath(path string) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+DefinitionCols+definitionFrom+
			"WHERE f.path = ? ORDER BY d.start_line, d.start_col",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions by path: %w", err)
	}
	return defs, nil
}

// DefinitionCount returns the number of stored definitions.
func (s *Store) DefinitionCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM definitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("definition count: %w", err)
	}
	return n, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertFileTx(ex execer, f *File) (int64, error) {
	res, err := ex.Exec(
		"INSERT INTO files (path, schema_kind, script_name, hash, last_indexed) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Schema, f.ScriptName, f.Hash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func insertDefinitionTx(ex execer, def *Definition) (int64, error) {
	res, err := ex.Exec(
		`INSERT INTO definitions (file_id, item_type, name, local_name, script_name,
			start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.FileID, def.ItemType, def.Name, def.LocalName, def.ScriptName,
		def.StartLine, def.StartCol, def.EndLine, def.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert definition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
