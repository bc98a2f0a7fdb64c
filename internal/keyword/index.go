// Package keyword provides full-text lookup over ingested chunks.
//
// It complements vector retrieval for inspecting the corpus (which files mention a
// term, with typo tolerance); answers are never synthesized from keyword hits.
package keyword

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means defaults.
type SearchOptions struct {
	// SourceBoost multiplies matches in the file name. Values > 1 rank filename matches higher.
	SourceBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance (1 or 2). Default 2 when fuzzy is enabled.
	Fuzziness int
}

// Index defines keyword indexing and search over chunks.
type Index interface {
	IndexEntries(ctx context.Context, entries []*models.IndexEntry) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error)
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single keyword search result.
type Hit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
	Path   string  `json:"path"`
	Chunk  int     `json:"chunk"`
	Text   string  `json:"text"`
}
