// Package vectorstore is the persistent vector index used for retrieval.
//
// A store lives in a directory holding index.db (SQLite). On open every stored
// embedding is loaded into an in-memory index; queries run against memory and
// resolve texts and metadata from SQLite. The embedding model id and dimension
// are recorded on first open, and reopening with a different model fails with
// ErrModelMismatch.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
)

// DBFileName is the SQLite file inside the index directory.
const DBFileName = "index.db"

const (
	infoModelID    = "model_id"
	infoDimensions = "dimensions"
)

// ErrModelMismatch is returned when an index is opened with a different embedding model
// than the one it was built with.
var ErrModelMismatch = errors.New("embedding model does not match index")

// Options identify the embedding space of the index.
type Options struct {
	ModelID    string
	Dimensions int
	Logger     *zap.Logger
}

// QueryResult holds parallel slices ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []models.ChunkMetadata
	Distances []float64
}

// Len returns the number of results.
func (r *QueryResult) Len() int {
	return len(r.IDs)
}

// Store is a persistent vector index. Add and Query are safe for concurrent use;
// only one process may write to a directory at a time.
type Store struct {
	dir     string
	modelID string
	db      storage.Storage
	index   *vector.MemoryIndex
	logger  *zap.Logger
	mu      sync.Mutex
}

// Open opens or creates the index in dir.
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	if opts.ModelID == "" || opts.Dimensions <= 0 {
		return nil, fmt.Errorf("vectorstore: model id and positive dimensions are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	db, err := storage.NewSQLiteStorage(filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, err
	}
	s := &Store{dir: dir, modelID: opts.ModelID, db: db, logger: logger}
	if err := s.checkModel(ctx, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	if s.index, err = vector.NewMemoryIndex(opts.Dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("vector index opened",
		zap.String("path", dir),
		zap.String("model_id", opts.ModelID),
		zap.Int("entries", s.index.Size()),
	)
	return s, nil
}

func (s *Store) checkModel(ctx context.Context, opts Options) error {
	storedModel, ok, err := s.db.GetInfo(ctx, infoModelID)
	if err != nil {
		return fmt.Errorf("failed to read index info: %w", err)
	}
	if !ok {
		if err := s.db.SetInfo(ctx, infoModelID, opts.ModelID); err != nil {
			return fmt.Errorf("failed to record model id: %w", err)
		}
		if err := s.db.SetInfo(ctx, infoDimensions, strconv.Itoa(opts.Dimensions)); err != nil {
			return fmt.Errorf("failed to record dimensions: %w", err)
		}
		return nil
	}
	if storedModel != opts.ModelID {
		return fmt.Errorf("%w: index %s was built with %q, embedder is %q", ErrModelMismatch, s.dir, storedModel, opts.ModelID)
	}
	storedDims, _, err := s.db.GetInfo(ctx, infoDimensions)
	if err != nil {
		return fmt.Errorf("failed to read index info: %w", err)
	}
	if storedDims != strconv.Itoa(opts.Dimensions) {
		return fmt.Errorf("%w: index %s has %s dimensions, embedder has %d", ErrModelMismatch, s.dir, storedDims, opts.Dimensions)
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	const batchSize = 512
	ids := make([]string, 0, batchSize)
	vecs := make([][]float32, 0, batchSize)
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := s.index.Add(ctx, ids, vecs); err != nil {
			return err
		}
		ids, vecs = ids[:0], vecs[:0]
		return nil
	}
	err := s.db.ScanEntries(ctx, func(e *models.IndexEntry) error {
		ids = append(ids, e.ID)
		vecs = append(vecs, e.Embedding)
		if len(ids) == batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return fmt.Errorf("failed to load index entries: %w", err)
	}
	return nil
}

// Add writes entries to disk in one transaction and then to the in-memory index.
// All slices must have the same length.
func (s *Store) Add(ctx context.Context, ids []string, vectors [][]float32, texts []string, metadatas []models.ChunkMetadata) error {
	n := len(ids)
	if len(vectors) != n || len(texts) != n || len(metadatas) != n {
		return fmt.Errorf("vectorstore: mismatched lengths ids=%d vectors=%d texts=%d metadatas=%d",
			n, len(vectors), len(texts), len(metadatas))
	}
	if n == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != s.index.Dimensions() {
			return fmt.Errorf("vectorstore: vector %d has %d dimensions, index expects %d", i, len(v), s.index.Dimensions())
		}
	}

	entries := make([]*models.IndexEntry, n)
	for i := range ids {
		entries[i] = &models.IndexEntry{ID: ids[i], Embedding: vectors[i], Text: texts[i], Metadata: metadatas[i]}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.BatchCreateEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to write index entries: %w", err)
	}
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("failed to add vectors: %w", err)
	}
	s.logger.Debug("index entries added", zap.Int("count", n), zap.Int("total", s.index.Size()))
	return nil
}

// Query returns up to topK entries nearest to vec. topK <= 0 returns an empty result.
func (s *Store) Query(ctx context.Context, vec []float32, topK int) (*QueryResult, error) {
	res := &QueryResult{}
	if topK <= 0 {
		return res, nil
	}
	hits, err := s.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	if len(hits) == 0 {
		return res, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	entries, err := s.db.GetEntries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	for _, h := range hits {
		e, ok := entries[h.ID]
		if !ok {
			return nil, fmt.Errorf("vectorstore: entry %s missing from %s", h.ID, DBFileName)
		}
		res.IDs = append(res.IDs, h.ID)
		res.Documents = append(res.Documents, e.Text)
		res.Metadatas = append(res.Metadatas, e.Metadata)
		res.Distances = append(res.Distances, h.Distance)
	}
	return res, nil
}

// Count returns the number of entries in the index.
func (s *Store) Count() int {
	return s.index.Size()
}

// ModelID returns the embedding model the index was built with.
func (s *Store) ModelID() string {
	return s.modelID
}

// Dir returns the index directory.
func (s *Store) Dir() string {
	return s.dir
}

// Sources returns per-document entry counts.
func (s *Store) Sources(ctx context.Context) ([]*models.SourceSummary, error) {
	return s.db.ListSources(ctx)
}

// DiskUsage returns the bytes used by the index directory.
func (s *Store) DiskUsage() (int64, error) {
	return storage.DiskUsageBytes(s.dir)
}

// Close releases the database.
func (s *Store) Close() error {
	_ = s.index.Close()
	return s.db.Close()
}
