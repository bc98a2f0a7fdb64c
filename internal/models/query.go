package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuestion is returned when a question is blank.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// AskRequest is a question submitted to the QA session.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate trims the question and clamps TopK into [1, maxTopK], using defaultTopK when unset.
func (r *AskRequest) Validate(defaultTopK, maxTopK int) error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	if r.TopK <= 0 {
		r.TopK = defaultTopK
	}
	if maxTopK > 0 && r.TopK > maxTopK {
		r.TopK = maxTopK
	}
	if r.TopK <= 0 {
		r.TopK = 1
	}
	return nil
}
