// Package retrieve finds the chunks most relevant to a question.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vectorstore"
)

// VectorQuerier is the read side of the vector index; implemented by vectorstore.Store.
type VectorQuerier interface {
	Query(ctx context.Context, vec []float32, topK int) (*vectorstore.QueryResult, error)
}

// Retriever embeds questions and queries the vector index.
type Retriever struct {
	embedder embedding.Embedder
	index    VectorQuerier
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for retrieval events.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever. embedder must be the model the index was built with.
func NewRetriever(embedder embedding.Embedder, index VectorQuerier, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK contexts ordered by ascending distance, as the index returns them.
// topK <= 0 returns an empty result without touching the embedder or index.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]*models.RetrievedContext, error) {
	if topK <= 0 {
		return []*models.RetrievedContext{}, nil
	}
	start := time.Now()
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	res, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	contexts := make([]*models.RetrievedContext, res.Len())
	for i := range contexts {
		contexts[i] = &models.RetrievedContext{
			ID:       res.IDs[i],
			Text:     res.Documents[i],
			Meta:     res.Metadatas[i],
			Distance: res.Distances[i],
			Score:    Score(res.Distances[i]),
		}
	}
	r.logger.Debug("retrieved contexts",
		zap.Int("top_k", topK),
		zap.Int("results", len(contexts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return contexts, nil
}

// Score maps a non-negative distance to (0, 1]: 1/(1+d). Lower distance scores higher.
func Score(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
