// Package models defines core data structures for chunks, index entries, answers, and evaluation reports.
package models

// ChunkMetadata ties an index entry back to the document it was cut from.
type ChunkMetadata struct {
	Source string `json:"source"` // file name
	Chunk  int    `json:"chunk"`  // zero-based chunk index within the source
	Path   string `json:"path"`   // original path as given at ingestion
}

// Chunk is a contiguous substring of a document's extracted text.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Path   string `json:"path"`
	Index  int    `json:"chunk"`
	Start  int    `json:"start"` // rune offset of the first character
}

// Metadata returns the index metadata for the chunk.
func (c *Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{Source: c.Source, Chunk: c.Index, Path: c.Path}
}

// IndexEntry is the persisted unit of the vector index. Entries are immutable once written.
type IndexEntry struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"-"`
	Text      string        `json:"text"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// FileStatus reports the outcome of ingesting a single path.
type FileStatus struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	Err    string `json:"error,omitempty"`
}

// OK reports whether the file was extracted without error.
func (f FileStatus) OK() bool {
	return f.Err == ""
}

// IngestResult is the outcome of one ingestion call.
type IngestResult struct {
	Inserted int          `json:"inserted"`
	Files    []FileStatus `json:"files"`
}

// Failed returns the statuses of files whose extraction failed.
func (r *IngestResult) Failed() []FileStatus {
	var out []FileStatus
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// SourceSummary counts the index entries stored for one ingested path.
type SourceSummary struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
}
