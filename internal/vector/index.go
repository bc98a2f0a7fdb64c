// Package vector provides nearest-neighbour search over embedding vectors.
package vector

import "context"

// Index stores vectors by ID and returns the nearest ones to a query.
// Search results are ordered by ascending distance; equal distances keep insertion order.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Hit, error)
	Size() int
	Close() error
}

// Hit is a single search result. Distance is the squared L2 distance to the query.
type Hit struct {
	ID       string
	Distance float64
}
