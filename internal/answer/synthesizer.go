package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
)

// Defaults for synthesis.
const (
	DefaultTemperature float32 = 0.2
	DefaultTimeout             = 60 * time.Second
)

// Synthesizer turns a question and its retrieved contexts into an answer.
type Synthesizer struct {
	generator     Generator
	model         string
	temperature   float32
	timeout       time.Duration
	credentialEnv string
	logger        *zap.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithLogger sets a logger for generation events.
func WithLogger(l *zap.Logger) SynthesizerOption {
	return func(s *Synthesizer) { s.logger = l }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) SynthesizerOption {
	return func(s *Synthesizer) { s.temperature = t }
}

// WithTimeout bounds each generation call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) SynthesizerOption {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCredentialEnv names the API key variable shown when authentication fails.
func WithCredentialEnv(name string) SynthesizerOption {
	return func(s *Synthesizer) { s.credentialEnv = name }
}

// NewSynthesizer creates a synthesizer that asks generator to complete with model.
func NewSynthesizer(generator Generator, model string, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		generator:   generator,
		model:       model,
		temperature: DefaultTemperature,
		timeout:     DefaultTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize answers question from contexts. With no contexts it returns the not-found
// answer without calling the generator. Generation failures come back in Result.Err.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, contexts []*models.RetrievedContext) Result {
	if len(contexts) == 0 {
		return Result{Answer: models.NotFoundAnswer}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.generator.Generate(ctx, BuildPrompt(question, contexts), s.model, s.temperature)
	if err != nil {
		kind := classify(err)
		s.logger.Warn("generation failed",
			zap.String("model", s.model),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return Result{Err: &GenerationError{Kind: kind, CredentialEnv: s.credentialEnv, Err: err}}
	}
	s.logger.Debug("answer generated",
		zap.String("model", s.model),
		zap.Int("contexts", len(contexts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Result{Answer: strings.TrimSpace(text)}
}

// Model returns the generation model name.
func (s *Synthesizer) Model() string {
	return s.model
}

// classify tags err as an auth failure when the generator flagged it, or when the
// backend message names a rejected key.
func classify(err error) Kind {
	if errors.Is(err, ErrUnauthorized) {
		return KindAuth
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "invalid_api_key", "unauthorized"} {
		if strings.Contains(msg, marker) {
			return KindAuth
		}
	}
	return KindTransport
}
