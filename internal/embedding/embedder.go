// Package embedding turns text into fixed-size vectors for the vector index.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a backend produces vectors of an unexpected size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder produces vector embeddings for text.
// ModelID identifies the model so an index built with one model is never queried with another.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelID() string
	Close() error
}

// checkBatch verifies a backend returned one vector of the expected size per input.
// A zero dims skips the size check.
func checkBatch(vectors [][]float32, inputs, dims int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("embedding backend returned %d vectors for %d inputs", len(vectors), inputs)
	}
	if dims <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}

func firstOf(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return vectors[0], nil
}
