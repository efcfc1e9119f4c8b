/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Schema Index Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schemaindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one indexed chunk of a schema document
type Entry struct {
	ID        int64
	Source    string
	Title     string
	Chunk     int
	Text      string
	Model     string    // embedding model, empty when not embedded
	Embedding []float32 // nil when not embedded
}

// Store persists index entries in SQLite
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the index database at path. ":memory:"
// gives a private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	// Each connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS entries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        title TEXT,
        chunk_index INTEGER NOT NULL DEFAULT 0,
        text TEXT NOT NULL,
        model TEXT,
        embedding BLOB,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Replace atomically swaps the whole index content for entries
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO entries (source, title, chunk_index, text, model, embedding)
        VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		var blob []byte
		if len(e.Embedding) > 0 {
			blob = serializeEmbedding(e.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, e.Source, e.Title, e.Chunk, e.Text, e.Model, blob); err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// All returns every entry in insertion order
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, source, COALESCE(title, ''), chunk_index, text, COALESCE(model, ''), embedding
        FROM entries
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Title, &e.Chunk, &e.Text, &e.Model, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Embedding = deserializeEmbedding(blob)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes the store for the CLI
type Stats struct {
	Entries  int
	Sources  int
	Embedded int
}

// Stats returns counts of entries, distinct sources and embedded entries
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COUNT(DISTINCT source), COUNT(embedding)
        FROM entries
    `).Scan(&st.Entries, &st.Sources, &st.Embedded)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read index stats: %w", err)
	}
	return st, nil
}

// serializeEmbedding converts a float32 slice to little-endian bytes
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts bytes back to a float32 slice
func deserializeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
