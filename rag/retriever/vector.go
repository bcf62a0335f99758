package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/coachrag/rag"
)

// VectorRetriever finds the chunks closest to a question
type VectorRetriever struct {
	vectorStore rag.VectorStore
	embedder    rag.Embedder
}

// NewVectorRetriever creates a new vector retriever
func NewVectorRetriever(vectorStore rag.VectorStore, embedder rag.Embedder) *VectorRetriever {
	return &VectorRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
	}
}

// Retrieve embeds the question of q and returns up to q.K chunks by
// ascending cosine distance, restricted to q.DocID when set. q must be
// normalized. No matches is an empty result, not an error.
func (r *VectorRetriever) Retrieve(ctx context.Context, q rag.Query) ([]rag.Chunk, error) {
	if q.K < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrInvalidArgument, q.K)
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, q.Question)
	if err != nil {
		return nil, embedError(err)
	}

	chunks, err := r.vectorStore.Search(ctx, queryEmbedding, q.K, q.DocID)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if chunks == nil {
		chunks = []rag.Chunk{}
	}
	return chunks, nil
}

// embedError keeps classified errors and marks everything else as a
// provider failure
func embedError(err error) error {
	if errors.Is(err, rag.ErrProvider) || errors.Is(err, rag.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	return fmt.Errorf("%w: failed to embed query: %w", rag.ErrProvider, err)
}
