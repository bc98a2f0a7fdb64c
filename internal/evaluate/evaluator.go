// Package evaluate measures answer quality against question/expected-answer fixtures.
package evaluate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/models"
)

// Defaults for an evaluation run.
const (
	DefaultTopK      = 4
	DefaultMaxCases  = 20
	DefaultThreshold = 70
)

// ContextRetriever is the retrieval half of the read path.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]*models.RetrievedContext, error)
}

// AnswerSynthesizer is the generation half of the read path.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, contexts []*models.RetrievedContext) answer.Result
}

// Evaluator runs fixture questions through retrieval and synthesis and scores the answers.
type Evaluator struct {
	retriever   ContextRetriever
	synthesizer AnswerSynthesizer
	topK        int
	maxCases    int
	threshold   int
	logger      *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets a logger for per-case results.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithTopK sets how many contexts are retrieved per question.
func WithTopK(k int) Option {
	return func(e *Evaluator) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithMaxCases caps the number of pairs evaluated.
func WithMaxCases(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxCases = n
		}
	}
}

// WithThreshold sets the minimum fuzzy score counted as correct.
func WithThreshold(t int) Option {
	return func(e *Evaluator) {
		if t >= 0 && t <= 100 {
			e.threshold = t
		}
	}
}

// NewEvaluator creates an evaluator over the given read path.
func NewEvaluator(retriever ContextRetriever, synthesizer AnswerSynthesizer, opts ...Option) *Evaluator {
	e := &Evaluator{
		retriever:   retriever,
		synthesizer: synthesizer,
		topK:        DefaultTopK,
		maxCases:    DefaultMaxCases,
		threshold:   DefaultThreshold,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate pairs questions[i] with expected[i] for the first min(len(questions),
// len(expected), maxCases) entries. Failed generations and retrievals are scored on
// their error text. With no pairs the accuracy and average time are 0.
func (e *Evaluator) Evaluate(ctx context.Context, questions, expected []string) *models.EvalReport {
	n := min(len(questions), len(expected), e.maxCases)
	report := &models.EvalReport{Total: n, Cases: make([]*models.EvalCase, 0, n)}
	if n == 0 {
		return report
	}

	var correct int
	var total time.Duration
	for i := 0; i < n; i++ {
		c := e.runCase(ctx, questions[i], expected[i])
		if c.Correct {
			correct++
		}
		total += c.Elapsed
		report.Cases = append(report.Cases, c)
	}

	report.Accuracy = float64(correct) / float64(n)
	report.AvgResponseTime = total.Seconds() / float64(n)
	e.logger.Info("evaluation complete",
		zap.Int("cases", n),
		zap.Int("correct", correct),
		zap.Float64("accuracy", report.Accuracy),
	)
	return report
}

func (e *Evaluator) runCase(ctx context.Context, question, expected string) *models.EvalCase {
	start := time.Now()
	var response string
	contexts, err := e.retriever.Retrieve(ctx, question, e.topK)
	if err != nil {
		e.logger.Warn("retrieval failed", zap.String("question", question), zap.Error(err))
		response = fmt.Sprintf("RETRIEVAL ERROR: %v", err)
	} else {
		response = e.synthesizer.Synthesize(ctx, question, contexts).Display()
	}
	elapsed := time.Since(start)

	score := TokenSetRatio(expected, response)
	c := &models.EvalCase{
		Question: question,
		Expected: expected,
		Response: response,
		Elapsed:  elapsed,
		Score:    score,
		Correct:  score >= e.threshold,
	}
	e.logger.Debug("evaluated case",
		zap.String("question", question),
		zap.Int("score", score),
		zap.Bool("correct", c.Correct),
		zap.Duration("elapsed", elapsed),
	)
	return c
}

// LoadLines reads a fixture file: one entry per non-blank line, trimmed.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return lines, nil
}
