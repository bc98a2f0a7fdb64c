package retrieve

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vectorstore"
)

type fakeIndex struct {
	result *vectorstore.QueryResult
	err    error
	calls  int
	topK   int
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) (*vectorstore.QueryResult, error) {
	f.calls++
	f.topK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestScore(t *testing.T) {
	if Score(0) != 1 {
		t.Errorf("Score(0) = %f, want 1", Score(0))
	}
	if Score(1) != 0.5 {
		t.Errorf("Score(1) = %f, want 0.5", Score(1))
	}
	prev := Score(0)
	for _, d := range []float64{0.1, 0.5, 1, 2, 10, 1e6} {
		s := Score(d)
		if s <= 0 || s >= prev {
			t.Errorf("Score(%g) = %g, want in (0, %g)", d, s, prev)
		}
		prev = s
	}
	if Score(-1) != 1 {
		t.Error("negative distances clamp to a perfect score")
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	idx := &fakeIndex{result: &vectorstore.QueryResult{
		IDs:       []string{"b", "a"},
		Documents: []string{"second", "first"},
		Metadatas: []models.ChunkMetadata{{Source: "x.txt", Chunk: 1}, {Source: "x.txt", Chunk: 0}},
		Distances: []float64{0.25, 0.25},
	}}
	r := NewRetriever(embedding.NewHashEmbedder(8), idx)

	got, err := r.Retrieve(context.Background(), "question", 3)
	if err != nil {
		t.Fatal(err)
	}
	if idx.topK != 3 {
		t.Errorf("topK passed = %d", idx.topK)
	}
	if len(got) != 2 {
		t.Fatalf("got %d contexts", len(got))
	}
	// Index order is preserved, ties included.
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order = %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Text != "second" || got[0].Meta.Chunk != 1 {
		t.Errorf("context = %+v", got[0])
	}
	if math.Abs(got[0].Score-0.8) > 1e-9 {
		t.Errorf("score = %f, want 0.8", got[0].Score)
	}
}

func TestRetriever_NonPositiveTopK(t *testing.T) {
	idx := &fakeIndex{result: &vectorstore.QueryResult{}}
	r := NewRetriever(embedding.NewHashEmbedder(8), idx)
	for _, k := range []int{0, -3} {
		got, err := r.Retrieve(context.Background(), "q", k)
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("topK=%d: got %v, %v", k, got, err)
		}
	}
	if idx.calls != 0 {
		t.Error("index should not be queried for topK <= 0")
	}
}

func TestRetriever_Errors(t *testing.T) {
	r := NewRetriever(embedding.NewHashEmbedder(8), &fakeIndex{err: errors.New("boom")})
	if _, err := r.Retrieve(context.Background(), "q", 2); err == nil {
		t.Error("expected index error")
	}
}

func TestRetriever_EmptyIndex(t *testing.T) {
	r := NewRetriever(embedding.NewHashEmbedder(8), &fakeIndex{result: &vectorstore.QueryResult{}})
	got, err := r.Retrieve(context.Background(), "anything", 3)
	if err != nil || len(got) != 0 {
		t.Errorf("empty index: %v, %v", got, err)
	}
}
