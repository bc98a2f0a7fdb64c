package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaGenerator calls a local Ollama server's /api/generate endpoint.
type OllamaGenerator struct {
	client *ollama.Client
}

// NewOllamaGenerator creates a generator for the server at baseURL.
func NewOllamaGenerator(baseURL string) (*OllamaGenerator, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	// Timeouts come from the caller's context.
	return &OllamaGenerator{client: ollama.NewClient(parsedURL, &http.Client{})}, nil
}

// Generate runs a non-streaming completion.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	stream := false
	var out strings.Builder
	err := g.client.Generate(ctx, &ollama.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: map[string]any{"temperature": temperature},
	}, func(resp ollama.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return "", fmt.Errorf("failed to generate with ollama: %w", err)
	}
	return out.String(), nil
}
