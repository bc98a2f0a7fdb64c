package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/tanya/internal/config"
)

// New builds the embedder selected by cfg.Provider. Remote and ONNX embedders are wrapped
// in an LRU cache when cfg.CacheSize > 0. Unknown providers are an error.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case config.ProviderOllama:
		e, err = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderOpenAI:
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: %s not set for openai embeddings", config.ErrMissingCredential, cfg.APIKeyEnv)
		}
		e, err = NewOpenAIEmbedder(key, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderONNX:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("onnx embedder: embedding.model_path is required")
		}
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
