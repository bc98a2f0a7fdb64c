package models

import "time"

// NotFoundAnswer is returned verbatim when no context supports an answer.
const NotFoundAnswer = "Not found in documents."

// RetrievedContext is a single ranked retrieval hit for one query.
type RetrievedContext struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Meta     ChunkMetadata `json:"meta"`
	Distance float64       `json:"distance"` // raw index metric, lower is closer
	Score    float64       `json:"score"`    // 1 / (1 + distance)
}

// SourceRef identifies a chunk cited by an answer.
type SourceRef struct {
	Source string `json:"source"`
	Chunk  int    `json:"chunk"`
}

// AnswerRecord is the outcome of asking one question.
type AnswerRecord struct {
	Question   string              `json:"question"`
	Answer     string              `json:"answer"`
	Confidence float64             `json:"confidence"`
	Elapsed    time.Duration       `json:"elapsed_ns"`
	Sources    []SourceRef         `json:"sources"`
	Contexts   []*RetrievedContext `json:"contexts"`
	// Failure is the generation error kind ("auth", "transport") when the answer is an error message.
	Failure string `json:"failure,omitempty"`
}

// DedupeSources returns the (source, chunk) pairs of contexts in first-seen order.
func DedupeSources(contexts []*RetrievedContext) []SourceRef {
	sources := make([]SourceRef, 0, len(contexts))
	seen := make(map[SourceRef]bool)
	for _, c := range contexts {
		key := SourceRef{Source: c.Meta.Source, Chunk: c.Meta.Chunk}
		if key.Source == "" {
			key.Source = "unknown"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, key)
	}
	return sources
}

// EvalCase is one question/expected-answer pair run through the read path.
type EvalCase struct {
	Question string        `json:"q"`
	Expected string        `json:"expected"`
	Response string        `json:"response"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Score    int           `json:"score"`
	Correct  bool          `json:"correct"`
}

// EvalReport aggregates an evaluation run.
type EvalReport struct {
	Total           int         `json:"total"`
	Cases           []*EvalCase `json:"cases"`
	Accuracy        float64     `json:"accuracy"`
	AvgResponseTime float64     `json:"avg_response_time_s"`
}
