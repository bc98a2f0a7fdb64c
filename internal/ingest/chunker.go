// Package ingest turns document files into embedded index entries.
package ingest

import (
	"path/filepath"

	"github.com/hyperjump/tanya/internal/models"
)

// Default chunking parameters, in characters (runes).
const (
	DefaultChunkSize    = 350
	DefaultChunkOverlap = 60
)

// Chunk splits text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one. The last window may be
// shorter; no window is empty. Empty text yields nil. An overlap that leaves
// no forward progress is treated as a step of one rune.
func Chunk(text string, chunkSize, overlap int) []string {
	spans := chunkSpans(len([]rune(text)), chunkSize, overlap)
	if spans == nil {
		return nil
	}
	runes := []rune(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = string(runes[s[0]:s[1]])
	}
	return out
}

// SplitDocument chunks text and attaches source metadata. The source is the base name of path.
func SplitDocument(path, text string, chunkSize, overlap int) []*models.Chunk {
	runes := []rune(text)
	spans := chunkSpans(len(runes), chunkSize, overlap)
	if spans == nil {
		return nil
	}
	source := filepath.Base(path)
	chunks := make([]*models.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = &models.Chunk{
			Text:   string(runes[s[0]:s[1]]),
			Source: source,
			Path:   path,
			Index:  i,
			Start:  s[0],
		}
	}
	return chunks
}

// chunkSpans returns [start, end) rune offsets for each window.
func chunkSpans(length, chunkSize, overlap int) [][2]int {
	if length == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	step := chunkSize - overlap
	if step <= 0 {
		step = 1
	}
	var spans [][2]int
	for start := 0; ; start += step {
		end := start + chunkSize
		if end > length {
			end = length
		}
		spans = append(spans, [2]int{start, end})
		if end >= length {
			break
		}
	}
	return spans
}
