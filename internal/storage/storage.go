// Package storage persists vector index entries.
package storage

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// Storage defines index entry persistence. Entries are append-only.
type Storage interface {
	// Index metadata (embedding model id, dimensions)
	GetInfo(ctx context.Context, key string) (string, bool, error)
	SetInfo(ctx context.Context, key, value string) error

	// Entry operations
	BatchCreateEntries(ctx context.Context, entries []*models.IndexEntry) error
	GetEntries(ctx context.Context, ids []string) (map[string]*models.IndexEntry, error)
	ScanEntries(ctx context.Context, fn func(*models.IndexEntry) error) error

	// Stats
	CountEntries(ctx context.Context) (int64, error)
	ListSources(ctx context.Context) ([]*models.SourceSummary, error)

	Close() error
}
