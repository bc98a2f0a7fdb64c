package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
)

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float32{float32(i), 1, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": embeddings})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(srv.URL, "all-minilm", 3)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if gotModel != "all-minilm" {
		t.Errorf("model sent = %q", gotModel)
	}
	if len(vs) != 2 || vs[1][0] != 1 {
		t.Errorf("vectors = %v", vs)
	}
	if e.ModelID() != "ollama/all-minilm" {
		t.Errorf("ModelID = %s", e.ModelID())
	}

	wrongDims, _ := NewOllamaEmbedder(srv.URL, "all-minilm", 384)
	if _, err := wrongDims.EmbedBatch(context.Background(), []string{"x"}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose; results must follow the index field.
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", srv.URL, "text-embedding-3-small", 2)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vs[0][0] != 1 || vs[1][1] != 1 {
		t.Errorf("vectors not ordered by index: %v", vs)
	}
	if e.ModelID() != "openai/text-embedding-3-small" {
		t.Errorf("ModelID = %s", e.ModelID())
	}
	if _, err := NewOpenAIEmbedder("", srv.URL, "m", 2); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: config.ProviderHash, Dimensions: 32, CacheSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*HashEmbedder); !ok {
		t.Errorf("hash provider should not be cached, got %T", e)
	}

	e, err = New(config.EmbeddingConfig{Provider: config.ProviderOllama, Model: "all-minilm", Dimensions: 384, CacheSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached ollama embedder, got %T", e)
	}

	t.Setenv("TANYA_EMBED_KEY", "")
	if _, err := New(config.EmbeddingConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "TANYA_EMBED_KEY"}); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("expected ErrMissingCredential, got %v", err)
	}
	if _, err := New(config.EmbeddingConfig{Provider: config.ProviderONNX}); err == nil {
		t.Error("expected error for onnx without model path")
	}
	if _, err := New(config.EmbeddingConfig{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
