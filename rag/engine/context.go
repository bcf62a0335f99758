package engine

import (
	"fmt"
	"strings"

	"github.com/smallnest/coachrag/rag"
)

// DefaultSystemPrompt instructs the model to stay within the retrieved context
const DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the supplied context. " +
	"If the answer is not in the context, say explicitly that it is not found in the context."

// NoContextMarker replaces the context block when retrieval found nothing
const NoContextMarker = "(no relevant context found)"

// ChunkDelimiter separates chunks in the context block
const ChunkDelimiter = "\n\n---\n\n"

// FormatChunk renders one chunk with a header exposing its provenance
func FormatChunk(c rag.Chunk) string {
	return fmt.Sprintf("[doc_id=%s source=%s chunk_id=%d]\n%s",
		c.DocID, rag.SourceLabel(c.Metadata, c.DocID), c.ID, c.Text)
}

// BuildContext joins the chunks into one context block, in the given order.
// No chunks yields the empty string.
func BuildContext(chunks []rag.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = FormatChunk(c)
	}
	return strings.Join(parts, ChunkDelimiter)
}

// BuildUserMessage renders the human turn sent to the language model
func BuildUserMessage(contextBlock, question string) string {
	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = NoContextMarker
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)
}
