// Package cli formats command results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const separator = "─────────────────────────────────────────────────────────"

// ParseFormat validates a -format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer with its sources and confidence. With showContext the
// retrieved chunks are listed too.
func WriteAnswer(w io.Writer, rec *models.AnswerRecord, format OutputFormat, showContext bool) error {
	if format == OutputJSON {
		if !showContext {
			out := *rec
			out.Contexts = nil
			return writeJSON(w, &out)
		}
		return writeJSON(w, rec)
	}

	fmt.Fprintf(w, "\n%s\n\n", rec.Answer)
	fmt.Fprintf(w, "Confidence: %.2f | Time: %.2fs\n", rec.Confidence, rec.Elapsed.Seconds())
	if len(rec.Sources) > 0 {
		refs := make([]string, len(rec.Sources))
		for i, s := range rec.Sources {
			refs[i] = fmt.Sprintf("%s#%d", s.Source, s.Chunk)
		}
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(refs, ", "))
	}
	if showContext && len(rec.Contexts) > 0 {
		fmt.Fprintln(w, "\n--- Retrieved context ---")
		for i, c := range rec.Contexts {
			fmt.Fprintln(w, separator)
			fmt.Fprintf(w, "[%d] %s#%d | Score: %.4f | Distance: %.4f\n", i+1, c.Meta.Source, c.Meta.Chunk, c.Score, c.Distance)
			fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(c.Text, 400))
		}
	}
	return nil
}

// WriteIngestResult writes per-file ingestion status and the inserted total.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	for _, f := range res.Files {
		if f.OK() {
			fmt.Fprintf(w, "  ok     %s (%d chunks)\n", f.Path, f.Chunks)
		} else {
			fmt.Fprintf(w, "  failed %s: %s\n", f.Path, f.Err)
		}
	}
	fmt.Fprintf(w, "Ingested %d chunks from %d files", res.Inserted, len(res.Files))
	if failed := len(res.Failed()); failed > 0 {
		fmt.Fprintf(w, " (%d failed)", failed)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteEvalReport writes the per-case table and the aggregate accuracy.
func WriteEvalReport(w io.Writer, report *models.EvalReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	for i, c := range report.Cases {
		mark := "✗"
		if c.Correct {
			mark = "✓"
		}
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "%s [%d] score %d | %.2fs\n", mark, i+1, c.Score, c.Elapsed.Seconds())
		fmt.Fprintf(w, "Q:        %s\n", c.Question)
		fmt.Fprintf(w, "Expected: %s\n", c.Expected)
		fmt.Fprintf(w, "Response: %s\n", utils.Truncate(c.Response, 200))
	}
	fmt.Fprintf(w, "\nCases: %d | Accuracy: %.1f%% | Avg response time: %.2fs\n",
		report.Total, report.Accuracy*100, report.AvgResponseTime)
	return nil
}

// WriteSearchHits writes keyword lookup hits.
func WriteSearchHits(w io.Writer, query string, hits []*keyword.Hit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*keyword.Hit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "hits": hits})
	}
	fmt.Fprintf(w, "\nFound %d chunks matching %q\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s#%d\n", i+1, h.Score, h.Source, h.Chunk)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Text, 200))
	}
	return nil
}

// Status summarizes the index for the status command.
type Status struct {
	IndexPath      string                  `json:"index_path"`
	ModelID        string                  `json:"model_id"`
	Entries        int                     `json:"entries"`
	DiskUsageBytes int64                   `json:"disk_usage_bytes"`
	Sources        []*models.SourceSummary `json:"sources"`
}

// WriteStatus writes index statistics.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Index:      %s\n", st.IndexPath)
	fmt.Fprintf(w, "Model:      %s\n", st.ModelID)
	fmt.Fprintf(w, "Entries:    %d\n", st.Entries)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(st.DiskUsageBytes))
	if len(st.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, s := range st.Sources {
			fmt.Fprintf(w, "  %-40s %d chunks\n", s.Source, s.Chunks)
		}
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
