// Package store persists chunks and their dense and lexical representations
// in SQLite: sqlite-vec holds the embeddings, FTS5 provides BM25 scoring.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store provides persistence for indexed files, chunks, and embeddings.
// Deleting a file removes every chunk carrying its path; a path already
// present is never re-chunked unless removed first.
type Store interface {
	// HasFile reports whether a path is already indexed.
	HasFile(path string) (bool, error)
	// UpsertFile inserts or replaces a file record and returns its ID.
	// Replacing deletes the file's existing chunks and vectors.
	UpsertFile(f FileRecord) (int64, error)
	// InsertChunks inserts chunks for a file, assigns each an opaque UID,
	// and returns the chunk IDs.
	InsertChunks(fileID int64, chunks []Chunk) ([]int64, error)
	// InsertEmbeddings stores dense vectors keyed by chunk ID.
	InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error
	// SearchDense finds the top-k chunks closest to the query embedding.
	SearchDense(queryEmbedding []float32, k int) ([]SearchResult, error)
	// SearchLexical ranks chunks against the query by BM25.
	SearchLexical(query string, k int) ([]SearchResult, error)
	// FileMetadata returns one (path, language) pair per indexed file.
	FileMetadata() ([]FileMeta, error)
	// ChunkCount returns the total number of stored chunks.
	ChunkCount() (int64, error)
	// DeleteFile removes a file and all chunks with its path.
	DeleteFile(path string) error
	// DeleteAll removes all files, chunks, and embeddings.
	DeleteAll() error
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec + FTS5.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema with the given embedding dimensionality.
func Open(dbPath string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) HasFile(path string) (bool, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM files WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) UpsertFile(f FileRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
	if err == nil {
		if err := deleteChunksTx(tx, existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			"UPDATE files SET hash = ?, language = ?, indexed_at = CURRENT_TIMESTAMP, size_bytes = ? WHERE id = ?",
			f.Hash, f.Language, f.SizeBytes, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO files (path, hash, language, size_bytes) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.Language, f.SizeBytes,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// deleteChunksTx removes a file's chunks from the chunk table, the vector
// table, and the FTS index.
func deleteChunksTx(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM chunks WHERE file_id = ?", fileID)
	if err != nil {
		return err
	}
	var chunkIDs []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cid := range chunkIDs {
		if _, err := tx.Exec("DELETE FROM vec_chunks WHERE chunk_id = ?", cid); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM chunks_fts WHERE rowid = ?", cid); err != nil {
			return err
		}
	}
	_, err = tx.Exec("DELETE FROM chunks WHERE file_id = ?", fileID)
	return err
}

func (s *SQLiteStore) InsertChunks(fileID int64, chunks []Chunk) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (uid, file_id, start_line, end_line, content, type) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ftsStmt, err := tx.Prepare("INSERT INTO chunks_fts (rowid, content) VALUES (?, ?)")
	if err != nil {
		return nil, err
	}
	defer ftsStmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		typ := c.Type
		if typ == "" {
			typ = "code"
		}
		res, err := stmt.Exec(uuid.NewString(), fileID, c.StartLine, c.EndLine, c.Content, typ)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if _, err := ftsStmt.Exec(id, c.Content); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched chunk IDs (%d) and embeddings (%d)", len(chunkIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cid := range chunkIDs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", cid, err)
		}
		if _, err := stmt.Exec(cid, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

const resultColumns = `c.id, c.uid, c.start_line, c.end_line, c.content, c.type, f.path, f.language`

func (s *SQLiteStore) SearchDense(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT v.distance, `+resultColumns+`
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN files f ON f.id = c.file_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var distance float64
		err := rows.Scan(
			&distance,
			&r.Chunk.ID, &r.Chunk.UID, &r.Chunk.StartLine, &r.Chunk.EndLine,
			&r.Chunk.Content, &r.Chunk.Type,
			&r.FilePath, &r.Language,
		)
		if err != nil {
			return nil, err
		}
		// Invert so higher is better, matching the lexical side.
		r.Score = 1.0 / (1.0 + distance)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) SearchLexical(query string, k int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT bm25(chunks_fts), `+resultColumns+`
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN files f ON f.id = c.file_id
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, match, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		err := rows.Scan(
			&rank,
			&r.Chunk.ID, &r.Chunk.UID, &r.Chunk.StartLine, &r.Chunk.EndLine,
			&r.Chunk.Content, &r.Chunk.Type,
			&r.FilePath, &r.Language,
		)
		if err != nil {
			return nil, err
		}
		// bm25() is smaller-is-better; negate so higher is better.
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery turns free text into a safe FTS5 MATCH expression: each token is
// quoted and tokens are OR-ed for recall. Returns "" for queries with no
// usable tokens.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

func (s *SQLiteStore) FileMetadata() ([]FileMeta, error) {
	rows, err := s.db.Query("SELECT path, language FROM files ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []FileMeta
	for rows.Next() {
		var m FileMeta
		if err := rows.Scan(&m.Path, &m.Language); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func (s *SQLiteStore) ChunkCount() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) DeleteFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fileID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", path).Scan(&fileID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if err := deleteChunksTx(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM vec_chunks",
		"DELETE FROM chunks_fts",
		"DELETE FROM chunks",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
