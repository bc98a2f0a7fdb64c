package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

type countingGenerator struct {
	calls   int
	prompts []string
	model   string
	temp    float32
	reply   string
	err     error
}

func (g *countingGenerator) Generate(_ context.Context, prompt, model string, temperature float32) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.model = model
	g.temp = temperature
	return g.reply, g.err
}

func ctxOf(source string, chunk int, text string) *models.RetrievedContext {
	return &models.RetrievedContext{Text: text, Meta: models.ChunkMetadata{Source: source, Chunk: chunk}}
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("What is the capital of France?", []*models.RetrievedContext{
		ctxOf("a.txt", 0, "Paris is the capital of France."),
		ctxOf("b.txt", 2, "Berlin is in Germany."),
	})
	want := "Answer the question using ONLY the context below.\n" +
		"If the answer is not found, say: Not found in documents.\n\n" +
		"CONTEXT:\n" +
		"[a.txt#0] Paris is the capital of France.\n\n" +
		"[b.txt#2] Berlin is in Germany.\n\n" +
		"QUESTION:\nWhat is the capital of France?\n"
	if got != want {
		t.Errorf("BuildPrompt:\n got %q\nwant %q", got, want)
	}
}

func TestSynthesize_NoContexts(t *testing.T) {
	gen := &countingGenerator{reply: "should not be used"}
	s := NewSynthesizer(gen, "m")

	res := s.Synthesize(context.Background(), "anything", nil)
	if res.Answer != models.NotFoundAnswer {
		t.Errorf("Answer = %q, want %q", res.Answer, models.NotFoundAnswer)
	}
	if !res.OK() {
		t.Errorf("unexpected error: %v", res.Err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestSynthesize_Success(t *testing.T) {
	gen := &countingGenerator{reply: "  Paris  \n"}
	s := NewSynthesizer(gen, "llama-3.1-8b-instant")

	res := s.Synthesize(context.Background(), "capital?", []*models.RetrievedContext{ctxOf("a.txt", 0, "Paris")})
	if res.Answer != "Paris" {
		t.Errorf("Answer = %q, want trimmed %q", res.Answer, "Paris")
	}
	if res.Display() != "Paris" {
		t.Errorf("Display = %q", res.Display())
	}
	if gen.calls != 1 {
		t.Fatalf("calls = %d, want 1", gen.calls)
	}
	if gen.model != "llama-3.1-8b-instant" {
		t.Errorf("model = %q", gen.model)
	}
	if gen.temp != DefaultTemperature {
		t.Errorf("temperature = %v, want %v", gen.temp, DefaultTemperature)
	}
	if !strings.Contains(gen.prompts[0], "[a.txt#0] Paris") {
		t.Errorf("prompt missing tagged context: %q", gen.prompts[0])
	}
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantText string
	}{
		{"flagged unauthorized", ErrUnauthorized, KindAuth, "GROQ_API_KEY"},
		{"status in message", errors.New("status code 401"), KindAuth, "API key rejected"},
		{"invalid key code", errors.New("error code: invalid_api_key"), KindAuth, "API key rejected"},
		{"transport", errors.New("connection refused"), KindTransport, "LLM ERROR: connection refused"},
		{"timeout", context.DeadlineExceeded, KindTransport, "LLM ERROR: context deadline exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &countingGenerator{err: tt.err}
			s := NewSynthesizer(gen, "m", WithCredentialEnv("GROQ_API_KEY"))
			res := s.Synthesize(context.Background(), "q", []*models.RetrievedContext{ctxOf("a", 0, "x")})
			if res.OK() {
				t.Fatal("expected failure")
			}
			if res.Err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", res.Err.Kind, tt.wantKind)
			}
			if res.FailureKind() != string(tt.wantKind) {
				t.Errorf("FailureKind = %q", res.FailureKind())
			}
			display := res.Display()
			if !strings.HasPrefix(display, "LLM ERROR: ") {
				t.Errorf("Display = %q, want LLM ERROR prefix", display)
			}
			if !strings.Contains(display, tt.wantText) {
				t.Errorf("Display = %q, want it to contain %q", display, tt.wantText)
			}
		})
	}
}

func TestSynthesize_Timeout(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, _, _ string, _ float32) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := NewSynthesizer(gen, "m", WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := s.Synthesize(context.Background(), "q", []*models.RetrievedContext{ctxOf("a", 0, "x")})
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not applied")
	}
	if res.OK() || res.Err.Kind != KindTransport {
		t.Errorf("expected transport failure, got %+v", res)
	}
}

func TestWithTemperature(t *testing.T) {
	gen := &countingGenerator{reply: "ok"}
	s := NewSynthesizer(gen, "m", WithTemperature(0.7))
	s.Synthesize(context.Background(), "q", []*models.RetrievedContext{ctxOf("a", 0, "x")})
	if gen.temp != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gen.temp)
	}
}
