package answer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
)

func TestOpenAIGenerator(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Paris"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator("gsk_test", srv.URL)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), "prompt", "llama-3.1-8b-instant", 0.2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Paris" {
		t.Errorf("out = %q, want Paris", out)
	}
	if gotModel != "llama-3.1-8b-instant" {
		t.Errorf("model = %q", gotModel)
	}
}

func TestOpenAIGenerator_SendsTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature float32
		want        string
	}{
		{"default", DefaultTemperature, `"temperature":0.2`},
		{"zero is sent", 0, `"temperature":0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				raw, _ := io.ReadAll(r.Body)
				body = string(raw)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
			}))
			defer srv.Close()

			gen, err := NewOpenAIGenerator("gsk_test", srv.URL)
			if err != nil {
				t.Fatalf("NewOpenAIGenerator: %v", err)
			}
			if _, err := gen.Generate(context.Background(), "prompt", "m", tt.temperature); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("request body %s does not contain %s", body, tt.want)
			}
		})
	}
}

func TestOpenAIGenerator_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	gen, err := NewOpenAIGenerator("gsk_bad", srv.URL)
	if err != nil {
		t.Fatalf("NewOpenAIGenerator: %v", err)
	}
	_, err = gen.Generate(context.Background(), "prompt", "m", 0.2)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	s := NewSynthesizer(gen, "m", WithCredentialEnv("GROQ_API_KEY"))
	res := s.Synthesize(context.Background(), "q", []*models.RetrievedContext{ctxOf("a", 0, "x")})
	if res.OK() || res.Err.Kind != KindAuth {
		t.Fatalf("expected auth failure, got %+v", res)
	}
}

func TestOpenAIGenerator_EmptyKey(t *testing.T) {
	if _, err := NewOpenAIGenerator("", ""); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestOllamaGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"Paris","done":true}`))
	}))
	defer srv.Close()

	gen, err := NewOllamaGenerator(srv.URL)
	if err != nil {
		t.Fatalf("NewOllamaGenerator: %v", err)
	}
	out, err := gen.Generate(context.Background(), "prompt", "llama3.1", 0.2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Paris" {
		t.Errorf("out = %q, want Paris", out)
	}
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("TANYA_TEST_KEY", "gsk_abc")

	gen, err := NewGenerator(config.GenerationConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "TANYA_TEST_KEY"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := gen.(*OpenAIGenerator); !ok {
		t.Errorf("got %T, want *OpenAIGenerator", gen)
	}

	if _, err := NewGenerator(config.GenerationConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "TANYA_UNSET_KEY"}); !errors.Is(err, config.ErrMissingCredential) {
		t.Errorf("missing key: err = %v, want ErrMissingCredential", err)
	}

	if _, err := NewGenerator(config.GenerationConfig{Provider: config.ProviderOllama}); err != nil {
		t.Errorf("ollama: %v", err)
	}

	if _, err := NewGenerator(config.GenerationConfig{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
