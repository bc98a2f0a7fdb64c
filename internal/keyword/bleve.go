package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/tanya/internal/models"
)

// chunkDocument is the Bleve document stored per index entry.
type chunkDocument struct {
	Content string `json:"content"`
	Source  string `json:"source"` // file name tokenized for matching
	File    string `json:"file"`
	Path    string `json:"path"`
	Chunk   int    `json:"chunk"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so queries match exact words.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("source", text)

	path := bleve.NewKeywordFieldMapping()
	path.IncludeInAll = false
	doc.AddFieldMappingsAt("path", path)
	doc.AddFieldMappingsAt("file", path)

	chunk := bleve.NewNumericFieldMapping()
	chunk.IncludeInAll = false
	doc.AddFieldMappingsAt("chunk", chunk)

	im.DefaultMapping = doc
	return im
}

// NewBleveIndex opens the index at path, creating it if missing. An empty path
// creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexEntries indexes entries in one batch, keyed by entry ID.
func (b *BleveIndex) IndexEntries(ctx context.Context, entries []*models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, e := range entries {
		doc := chunkDocument{
			Content: e.Text,
			// Underscores and dashes as spaces so "annual_report-2023.pdf" matches "annual report".
			Source: strings.NewReplacer("_", " ", "-", " ").Replace(e.Metadata.Source),
			File:   e.Metadata.Source,
			Path:   e.Metadata.Path,
			Chunk:  e.Metadata.Chunk,
		}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("failed to batch entry %s: %w", e.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// Search returns up to limit hits ordered by score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	sourceBoost := 1.0
	fuzzy := false
	fuzziness := 2
	if opts != nil {
		if opts.SourceBoost > 0 {
			sourceBoost = opts.SourceBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var contentQ, sourceQ blevequery.Query
	if fuzzy {
		contentQ = buildFuzzyQuery(query, fuzziness, "content", 1)
		sourceQ = buildFuzzyQuery(query, fuzziness, "source", sourceBoost)
	} else {
		cq := bleve.NewMatchQuery(query)
		cq.SetField("content")
		sq := bleve.NewMatchQuery(query)
		sq.SetField("source")
		sq.SetBoost(sourceBoost)
		contentQ, sourceQ = cq, sq
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(contentQ, sourceQ))
	req.Size = limit
	req.Fields = []string{"content", "file", "path", "chunk"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, h := range results.Hits {
		hit := &Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Text = v
		}
		if v, ok := h.Fields["file"].(string); ok {
			hit.Source = v
		}
		if v, ok := h.Fields["path"].(string); ok {
			hit.Path = v
		}
		if v, ok := h.Fields["chunk"].(float64); ok {
			hit.Chunk = int(v)
		}
		out[i] = hit
	}
	return out, nil
}

// buildFuzzyQuery ORs a FuzzyQuery per lower-cased term, restricted to field.
func buildFuzzyQuery(query string, fuzziness int, field string, boost float64) blevequery.Query {
	terms := strings.Fields(strings.ToLower(query))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
