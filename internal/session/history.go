package session

import (
	"sync"

	"github.com/hyperjump/tanya/internal/models"
)

// DefaultHistorySize is how many answers Recent returns by default.
const DefaultHistorySize = 10

// History is an append-only log of answered questions. Reads return only the
// last size records; older records are dropped lazily on read.
type History struct {
	mu      sync.Mutex
	size    int
	records []*models.AnswerRecord
}

// NewHistory creates a history window of size records (DefaultHistorySize if size <= 0).
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Append records an answer.
func (h *History) Append(rec *models.AnswerRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
}

// Recent returns the last size records, newest first, and trims the log to them.
func (h *History) Recent() []*models.AnswerRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) > h.size {
		kept := make([]*models.AnswerRecord, h.size)
		copy(kept, h.records[len(h.records)-h.size:])
		h.records = kept
	}
	out := make([]*models.AnswerRecord, len(h.records))
	for i, rec := range h.records {
		out[len(h.records)-1-i] = rec
	}
	return out
}

// Len returns the number of stored records, including any not yet trimmed.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
