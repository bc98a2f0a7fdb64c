package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(id, source string, chunk int, text string, emb ...float32) *models.IndexEntry {
	return &models.IndexEntry{
		ID:        id,
		Embedding: emb,
		Text:      text,
		Metadata:  models.ChunkMetadata{Source: source, Chunk: chunk, Path: "/docs/" + source},
	}
}

func TestSQLiteStorage_Info(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, ok, err := store.GetInfo(ctx, "model_id"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := store.SetInfo(ctx, "model_id", "hash-v1/8"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInfo(ctx, "model_id", "ollama/all-minilm"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := store.GetInfo(ctx, "model_id")
	if err != nil || !ok || v != "ollama/all-minilm" {
		t.Errorf("GetInfo = %q, %v, %v", v, ok, err)
	}
}

func TestSQLiteStorage_Entries(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	batch := []*models.IndexEntry{
		entry("e1", "a.txt", 0, "alpha zero", 1, 0),
		entry("e2", "a.txt", 1, "alpha one", 0, 1),
		entry("e3", "b.pdf", 0, "beta zero", 0.5, 0.5),
	}
	if err := store.BatchCreateEntries(ctx, batch); err != nil {
		t.Fatal(err)
	}
	if err := store.BatchCreateEntries(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	n, err := store.CountEntries(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountEntries = %d, %v", n, err)
	}

	got, err := store.GetEntries(ctx, []string{"e3", "e1", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("GetEntries returned %d entries", len(got))
	}
	if e := got["e3"]; e.Text != "beta zero" || e.Metadata.Source != "b.pdf" || e.Metadata.Path != "/docs/b.pdf" {
		t.Errorf("e3 = %+v", e)
	}

	var order []string
	err = store.ScanEntries(ctx, func(e *models.IndexEntry) error {
		order = append(order, e.ID)
		if e.ID == "e3" && (len(e.Embedding) != 2 || e.Embedding[0] != 0.5) {
			t.Errorf("e3 embedding = %v", e.Embedding)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "e1" || order[1] != "e2" || order[2] != "e3" {
		t.Errorf("scan order = %v", order)
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[0].Source != "a.txt" || sources[0].Chunks != 2 || sources[1].Chunks != 1 {
		t.Errorf("sources = %+v %+v", sources[0], sources[1])
	}
}

func TestSQLiteStorage_batchIsAtomic(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	dup := []*models.IndexEntry{entry("x", "a.txt", 0, "one", 1), entry("x", "a.txt", 1, "two", 1)}
	if err := store.BatchCreateEntries(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate id")
	}
	if n, _ := store.CountEntries(ctx); n != 0 {
		t.Errorf("failed batch left %d entries", n)
	}
}

func TestSQLiteStorage_scanStopsOnError(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_ = store.BatchCreateEntries(ctx, []*models.IndexEntry{entry("a", "s", 0, "t", 1), entry("b", "s", 1, "t", 1)})

	stop := errors.New("stop")
	calls := 0
	err := store.ScanEntries(ctx, func(*models.IndexEntry) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
