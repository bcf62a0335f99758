package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultK is the number of chunks retrieved when a query does not set K
const DefaultK = 5

// MaxDocIDLength is the widest doc_id the stores accept
const MaxDocIDLength = 200

// Chunk is the atomic retrievable unit: a slice of a document's text with
// its embedding and the metadata carried through from ingestion
type Chunk struct {
	ID        int64          `json:"id"`
	DocID     string         `json:"doc_id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata"`

	// Distance is the cosine distance to the query vector, set by Search
	Distance float64 `json:"distance,omitempty"`
}

// Source returns the provenance descriptor of the chunk
func (c Chunk) Source() Source {
	return Source{
		ID:       c.ID,
		DocID:    c.DocID,
		Metadata: c.Metadata,
	}
}

// IngestItem is one document submitted for ingestion
type IngestItem struct {
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the document identity of the item
func (i IngestItem) Validate() error {
	if strings.TrimSpace(i.DocID) == "" {
		return fmt.Errorf("%w: doc_id is required", ErrInvalidArgument)
	}
	if n := len([]rune(i.DocID)); n > MaxDocIDLength {
		return fmt.Errorf("%w: doc_id is %d characters, limit is %d", ErrInvalidArgument, n, MaxDocIDLength)
	}
	return nil
}

// IngestMode selects what happens to existing chunks of a re-ingested document
type IngestMode string

const (
	// IngestAppend adds the new chunks next to any existing ones
	IngestAppend IngestMode = "append"
	// IngestReplace removes the document's existing chunks in the same transaction
	IngestReplace IngestMode = "replace"
)

// ParseIngestMode parses a mode name; the empty string means append
func ParseIngestMode(s string) (IngestMode, error) {
	switch IngestMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", IngestAppend:
		return IngestAppend, nil
	case IngestReplace:
		return IngestReplace, nil
	default:
		return "", fmt.Errorf("%w: unknown ingest mode %q", ErrInvalidArgument, s)
	}
}

// Query is a question to answer from the stored corpus
type Query struct {
	Question string
	// K is the number of chunks to retrieve; zero means DefaultK
	K int
	// DocID restricts retrieval to one document when non-empty
	DocID string
}

// Normalize applies defaults and validates the query
func (q Query) Normalize() (Query, error) {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return q, fmt.Errorf("%w: question is required", ErrInvalidArgument)
	}
	if q.K == 0 {
		q.K = DefaultK
	}
	if q.K < 1 {
		return q, fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidArgument, q.K)
	}
	return q, nil
}

// Source identifies a chunk used as answer context
type Source struct {
	ID       int64          `json:"id"`
	DocID    string         `json:"doc_id"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is the generated answer with the chunks it was grounded on,
// most relevant first
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// StoreStats summarizes the contents of a vector store
type StoreStats struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
	Dimension int `json:"dimension"`
}

// Embedder turns text into fixed-dimension vectors.
// EmbedDocuments preserves length and order; EmbedQuery(t) must equal
// EmbedDocuments([t])[0] for the same model.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore persists chunks and answers similarity queries
type VectorStore interface {
	// Insert stores chunks[i] with embeddings[i] for docID atomically and
	// returns the number of rows written
	Insert(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error)

	// Replace deletes every chunk of docID and inserts the new ones in the
	// same transaction
	Replace(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error)

	// Search returns up to k chunks ordered by ascending cosine distance,
	// ties broken by ascending id. An empty docID disables the filter.
	Search(ctx context.Context, embedding []float32, k int, docID string) ([]Chunk, error)

	// Delete removes every chunk of docID and returns how many were removed
	Delete(ctx context.Context, docID string) (int, error)

	// Stats reports chunk and document counts
	Stats(ctx context.Context) (StoreStats, error)

	Close() error
}
