package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

// ErrNoText is recorded for a file that extracted cleanly but holds only whitespace.
var ErrNoText = errors.New("no extractable text")

// TextExtractor turns a file into plain text.
type TextExtractor interface {
	Extract(path string) (string, error)
}

// VectorWriter receives embedded chunks; implemented by vectorstore.Store.
type VectorWriter interface {
	Add(ctx context.Context, ids []string, vectors [][]float32, texts []string, metadatas []models.ChunkMetadata) error
}

// Pipeline extracts, chunks, embeds and writes documents to the vector index.
// Ingestion is not idempotent: ingesting a file twice stores its chunks twice.
type Pipeline struct {
	extractor    TextExtractor
	embedder     embedding.Embedder
	index        VectorWriter
	keywordIndex keyword.Index
	chunkSize    int
	chunkOverlap int
	newID        func() string
	logger       *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithChunking overrides the default chunk size and overlap.
func WithChunking(size, overlap int) PipelineOption {
	return func(p *Pipeline) {
		p.chunkSize = size
		p.chunkOverlap = overlap
	}
}

// WithKeywordIndex also indexes inserted chunks for keyword lookup. Failures there are logged, not returned.
func WithKeywordIndex(k keyword.Index) PipelineOption {
	return func(p *Pipeline) { p.keywordIndex = k }
}

// WithIDGenerator replaces the UUIDv4 entry id generator.
func WithIDGenerator(f func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = f }
}

// NewPipeline creates a pipeline. Returns an error for invalid chunking parameters.
func NewPipeline(extractor TextExtractor, embedder embedding.Embedder, index VectorWriter, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		extractor:    extractor,
		embedder:     embedder,
		index:        index,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		newID:        func() string { return uuid.New().String() },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", p.chunkSize)
	}
	if p.chunkOverlap < 0 || p.chunkOverlap >= p.chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", p.chunkSize, p.chunkOverlap)
	}
	return p, nil
}

// Ingest processes paths in order. A file that cannot be extracted is recorded in its
// FileStatus and contributes no chunks, as does a file with only whitespace; the rest of the batch continues. All chunks of
// the call are embedded in one batch and written in one index call.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (*models.IngestResult, error) {
	result := &models.IngestResult{Files: make([]models.FileStatus, 0, len(paths))}
	var chunks []*models.Chunk

	for _, path := range paths {
		status := models.FileStatus{Path: path, Source: filepath.Base(path)}
		text, err := p.extractor.Extract(path)
		if err != nil {
			status.Err = err.Error()
			p.logger.Warn("extraction failed", zap.String("path", path), zap.Error(err))
			text = ""
		}
		var fileChunks []*models.Chunk
		switch {
		case strings.TrimSpace(text) != "":
			fileChunks = SplitDocument(path, text, p.chunkSize, p.chunkOverlap)
		case status.Err == "":
			status.Err = ErrNoText.Error()
			p.logger.Warn("skipping file without text", zap.String("path", path))
		}
		status.Chunks = len(fileChunks)
		chunks = append(chunks, fileChunks...)
		result.Files = append(result.Files, status)
		p.logger.Debug("file chunked", zap.String("path", path), zap.Int("chunks", len(fileChunks)))
	}

	if len(chunks) == 0 {
		p.logger.Info("nothing to ingest", zap.Int("files", len(paths)))
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	entries := make([]*models.IndexEntry, len(chunks))
	ids := make([]string, len(chunks))
	metadatas := make([]models.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		ids[i] = p.newID()
		metadatas[i] = c.Metadata()
		entries[i] = &models.IndexEntry{ID: ids[i], Embedding: vectors[i], Text: c.Text, Metadata: metadatas[i]}
	}
	if err := p.index.Add(ctx, ids, vectors, texts, metadatas); err != nil {
		return nil, fmt.Errorf("failed to write index: %w", err)
	}
	result.Inserted = len(chunks)

	if p.keywordIndex != nil {
		if err := p.keywordIndex.IndexEntries(ctx, entries); err != nil {
			p.logger.Warn("keyword indexing failed", zap.Error(err))
		}
	}
	p.logger.Info("ingestion complete",
		zap.Int("files", len(paths)),
		zap.Int("failed", len(result.Failed())),
		zap.Int("inserted", result.Inserted),
	)
	return result, nil
}

// IngestDir ingests the files CollectFiles finds in dir.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, recursive bool, exts []string) (*models.IngestResult, error) {
	paths, err := CollectFiles(dir, recursive, exts)
	if err != nil {
		return nil, err
	}
	return p.Ingest(ctx, paths)
}

// ChunkParams returns the effective chunk size and overlap.
func (p *Pipeline) ChunkParams() (size, overlap int) {
	return p.chunkSize, p.chunkOverlap
}
