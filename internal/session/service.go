// Package session answers single questions by composing retrieval and synthesis.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/models"
)

// ContextRetriever finds contexts for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]*models.RetrievedContext, error)
}

// AnswerSynthesizer turns contexts into an answer.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, contexts []*models.RetrievedContext) answer.Result
}

// Service is the question-answering session.
type Service struct {
	retriever   ContextRetriever
	synthesizer AnswerSynthesizer
	history     *History
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for answered questions.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTopK sets the default and maximum number of contexts per question.
func WithTopK(defaultTopK, maxTopK int) Option {
	return func(s *Service) {
		if defaultTopK > 0 {
			s.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			s.maxTopK = maxTopK
		}
	}
}

// WithHistory replaces the session history.
func WithHistory(h *History) Option {
	return func(s *Service) { s.history = h }
}

// NewService creates a session over retriever and synthesizer.
func NewService(retriever ContextRetriever, synthesizer AnswerSynthesizer, opts ...Option) *Service {
	s := &Service{
		retriever:   retriever,
		synthesizer: synthesizer,
		history:     NewHistory(DefaultHistorySize),
		defaultTopK: 3,
		maxTopK:     5,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers one question and appends the record to the history. A generation
// failure is not an error: the record carries the rendered failure in Answer and its
// kind in Failure. Errors are returned for invalid requests and retrieval failures.
func (s *Service) Ask(ctx context.Context, req models.AskRequest) (*models.AnswerRecord, error) {
	if err := req.Validate(s.defaultTopK, s.maxTopK); err != nil {
		return nil, err
	}

	start := time.Now()
	contexts, err := s.retriever.Retrieve(ctx, req.Question, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve contexts: %w", err)
	}
	res := s.synthesizer.Synthesize(ctx, req.Question, contexts)

	rec := &models.AnswerRecord{
		Question:   req.Question,
		Answer:     res.Display(),
		Confidence: Confidence(contexts),
		Elapsed:    time.Since(start),
		Sources:    models.DedupeSources(contexts),
		Contexts:   contexts,
		Failure:    res.FailureKind(),
	}
	s.history.Append(rec)

	s.logger.Info("question answered",
		zap.Int("top_k", req.TopK),
		zap.Int("contexts", len(contexts)),
		zap.Float64("confidence", rec.Confidence),
		zap.Duration("elapsed", rec.Elapsed),
		zap.String("failure", rec.Failure),
	)
	return rec, nil
}

// History returns the session history.
func (s *Service) History() *History {
	return s.history
}

// Confidence is the score of the top-ranked context, or 0 with no contexts.
func Confidence(contexts []*models.RetrievedContext) float64 {
	if len(contexts) == 0 {
		return 0
	}
	return contexts[0].Score
}
