package embedder

import (
	"context"
	"math"

	"github.com/smallnest/coachrag/rag"
)

// Mock is a deterministic embedder for tests and offline runs
type Mock struct {
	dimension int
}

var _ rag.Embedder = (*Mock)(nil)

// NewMock creates a Mock producing vectors of the given dimension
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Mock{dimension: dimension}
}

// EmbedDocuments generates mock embeddings for texts
func (e *Mock) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = e.generate(text)
	}
	return result, nil
}

// EmbedQuery generates a mock embedding for text
func (e *Mock) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// Dimension returns the embedding dimension
func (e *Mock) Dimension() int {
	return e.dimension
}

func (e *Mock) generate(text string) []float32 {
	embedding := make([]float32, e.dimension)
	for i := 0; i < e.dimension; i++ {
		var sum float64
		for j, char := range text {
			sum += float64(char) * float64(i+j+1)
		}
		embedding[i] = float32(math.Sin(sum / 1000.0))
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		embedding[0] = 1
		return embedding
	}
	norm = math.Sqrt(norm)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}
	return embedding
}
