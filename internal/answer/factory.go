package answer

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
)

// NewGenerator builds the generator selected by cfg.Provider. The OpenAI-compatible
// provider requires the credential named by cfg.APIKeyEnv.
func NewGenerator(cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		return NewOpenAIGenerator(key, cfg.BaseURL)
	case config.ProviderOllama:
		return NewOllamaGenerator(cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
