package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/tanya/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each lower-cased word is hashed
// into a bucket with a signed weight and the result is L2-normalized, so texts sharing
// words land close together. It needs no model files or network and backs tests and
// offline runs.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given size (default 384).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed embedding of text. Text without words yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range Words(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimensions))
		if sum&(1<<63) != 0 {
			emb[bucket] -= 1
		} else {
			emb[bucket] += 1
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i], _ = e.Embed(ctx, text)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID encodes the dimension, since differently sized hash embeddings are incompatible.
func (e *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-v1/%d", e.dimensions)
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
