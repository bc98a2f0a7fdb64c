package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
)

// SQLiteStorage implements Storage using SQLite. Embeddings are stored as
// little-endian float32 blobs; rows keep insertion order through an integer rowid.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		path TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// GetInfo returns the value stored under key; ok is false if the key is absent.
func (s *SQLiteStorage) GetInfo(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetInfo stores value under key, replacing any previous value.
func (s *SQLiteStorage) SetInfo(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_info (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// BatchCreateEntries inserts entries in a single transaction.
func (s *SQLiteStorage) BatchCreateEntries(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (id, source, path, chunk_index, content, metadata, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Metadata.Source, e.Metadata.Path, e.Metadata.Chunk, e.Text,
			string(metadataJSON), vector.EncodeVector(e.Embedding), now,
		); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// GetEntries returns the entries with the given IDs, keyed by ID. Unknown IDs are omitted.
// Embeddings are not loaded.
func (s *SQLiteStorage) GetEntries(ctx context.Context, ids []string) (map[string]*models.IndexEntry, error) {
	out := make(map[string]*models.IndexEntry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata FROM entries WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.IndexEntry
		var metadataJSON string
		if err := rows.Scan(&e.ID, &e.Text, &metadataJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metadataJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", e.ID, err)
		}
		out[e.ID] = &e
	}
	return out, rows.Err()
}

// ScanEntries calls fn for every entry, with its embedding, in insertion order.
// Text is not loaded. Iteration stops at the first error returned by fn.
func (s *SQLiteStorage) ScanEntries(ctx context.Context, fn func(*models.IndexEntry) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM entries ORDER BY seq`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e models.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &blob); err != nil {
			return err
		}
		e.Embedding = vector.DecodeVector(blob)
		if err := fn(&e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountEntries returns the total number of entries.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// ListSources returns per-path entry counts ordered by first ingestion.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]*models.SourceSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, path, COUNT(*) FROM entries
		 GROUP BY source, path ORDER BY MIN(seq)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SourceSummary
	for rows.Next() {
		var sum models.SourceSummary
		if err := rows.Scan(&sum.Source, &sum.Path, &sum.Chunks); err != nil {
			return nil, err
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
