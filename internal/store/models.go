package store

import "time"

// FileRecord represents an indexed source file or ingested document.
type FileRecord struct {
	ID        int64
	Path      string
	Hash      string
	Language  string
	IndexedAt time.Time
	SizeBytes int64
}

// Chunk is the atomic retrieval unit persisted by the store. ID is the
// internal rowid; UID is the opaque public identity assigned on insert.
type Chunk struct {
	ID        int64
	UID       string
	FileID    int64
	StartLine int
	EndLine   int
	Content   string
	Type      string // "code" or "document"
}

// FileMeta is the lightweight record backing the file-metadata cache.
type FileMeta struct {
	Path     string
	Language string
}

// SearchResult is a chunk with its retrieval score and file path.
// Score semantics depend on the producing query: higher is always better.
type SearchResult struct {
	Chunk    Chunk
	FilePath string
	Language string
	Score    float64
}
