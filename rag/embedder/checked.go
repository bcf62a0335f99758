package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/coachrag/rag"
)

// Checked guards an Embedder: every result must have one vector per input
// and every vector must have the configured dimension
type Checked struct {
	inner     rag.Embedder
	dimension int
}

var _ rag.Embedder = (*Checked)(nil)

// NewChecked wraps inner. A non-positive dimension means inner.Dimension().
func NewChecked(inner rag.Embedder, dimension int) *Checked {
	if dimension <= 0 {
		dimension = inner.Dimension()
	}
	return &Checked{inner: inner, dimension: dimension}
}

// EmbedDocuments embeds texts and validates the result shape
func (c *Checked) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := c.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, asProviderError(err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", rag.ErrProvider, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if err := c.check(v); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}
	return vecs, nil
}

// EmbedQuery embeds text and validates the dimension
func (c *Checked) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, asProviderError(err)
	}
	if err := c.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Dimension returns the enforced dimension
func (c *Checked) Dimension() int {
	return c.dimension
}

func (c *Checked) check(v []float32) error {
	if len(v) != c.dimension {
		return fmt.Errorf("%w: embedding dimension %d does not match configured dimension %d",
			rag.ErrProvider, len(v), c.dimension)
	}
	return nil
}

// asProviderError keeps classified errors and context errors as they are
func asProviderError(err error) error {
	if errors.Is(err, rag.ErrProvider) || errors.Is(err, rag.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", rag.ErrProvider, err)
}
