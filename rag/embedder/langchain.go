package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/coachrag/rag"
	"github.com/tmc/langchaingo/embeddings"
)

// LangChain adapts langchaingo's embeddings.Embedder to rag.Embedder
type LangChain struct {
	embedder  embeddings.Embedder
	dimension int
}

var _ rag.Embedder = (*LangChain)(nil)

// NewLangChain creates a new adapter for langchaingo embedders. langchaingo
// embedders do not expose their dimension, so the caller provides it.
func NewLangChain(embedder embeddings.Embedder, dimension int) *LangChain {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &LangChain{
		embedder:  embedder,
		dimension: dimension,
	}
}

// EmbedDocuments embeds multiple texts using the underlying langchaingo embedder
func (l *LangChain) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		if errors.Is(err, rag.ErrProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to embed documents: %w", rag.ErrProvider, err)
	}

	result := make([][]float32, len(vecs))
	for i, vec := range vecs {
		result[i] = make([]float32, len(vec))
		for j, val := range vec {
			result[i][j] = float32(val)
		}
	}
	return result, nil
}

// EmbedQuery embeds a single text. It goes through EmbedDocuments because
// langchaingo embedders may preprocess queries differently from documents.
func (l *LangChain) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, l, text)
}

// Dimension returns the configured embedding dimension
func (l *LangChain) Dimension() int {
	return l.dimension
}
