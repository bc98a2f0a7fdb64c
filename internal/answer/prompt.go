package answer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

const promptInstruction = "Answer the question using ONLY the context below.\n" +
	"If the answer is not found, say: " + models.NotFoundAnswer + "\n\n"

// BuildPrompt renders the grounding prompt: the instruction, each context tagged
// [source#chunk] in retrieval order, then the question.
func BuildPrompt(question string, contexts []*models.RetrievedContext) string {
	var b strings.Builder
	b.WriteString(promptInstruction)
	b.WriteString("CONTEXT:\n")
	for _, c := range contexts {
		fmt.Fprintf(&b, "[%s#%d] %s\n\n", c.Meta.Source, c.Meta.Chunk, c.Text)
	}
	b.WriteString("QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}
