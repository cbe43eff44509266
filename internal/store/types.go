package store

import "time"

// File is one scanned file on disk.
type File struct {
	ID          int64
	Path        string
	Schema      string
	ScriptName  string
	Hash        string
	LastIndexed time.Time
}

// Definition is an externally defined item. Name is the qualified key for
// namespaced item types and equals LocalName otherwise.
type Definition struct {
	ID         int64
	FileID     int64
	ItemType   string
	Name       string
	LocalName  string
	ScriptName string
	Path       string // filled from files.path on read
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}
