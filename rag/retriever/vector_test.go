package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/smallnest/coachrag/rag"
	"github.com/smallnest/coachrag/rag/embedder"
	"github.com/smallnest/coachrag/rag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenEmbedder struct{ rag.Embedder }

func (brokenEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestVectorRetriever(t *testing.T) {
	ctx := context.Background()
	emb := embedder.NewMock(8)
	vs := store.NewMemoryStore(8)

	texts := []string{"alpha", "beta", "gamma"}
	vecs, err := emb.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	_, err = vs.Insert(ctx, "A", texts[:2], vecs[:2], nil)
	require.NoError(t, err)
	_, err = vs.Insert(ctx, "B", texts[2:], vecs[2:], nil)
	require.NoError(t, err)

	r := NewVectorRetriever(vs, emb)

	chunks, err := r.Retrieve(ctx, rag.Query{Question: "gamma", K: 5})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "gamma", chunks[0].Text)

	chunks, err = r.Retrieve(ctx, rag.Query{Question: "gamma", K: 5, DocID: "A"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Equal(t, "A", c.DocID)
	}

	chunks, err = r.Retrieve(ctx, rag.Query{Question: "gamma", K: 5, DocID: "Z"})
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)

	chunks, err = r.Retrieve(ctx, rag.Query{Question: "beta", K: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "beta", chunks[0].Text)
}

func TestVectorRetrieverErrors(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryStore(8)

	_, err := NewVectorRetriever(vs, embedder.NewMock(8)).Retrieve(ctx, rag.Query{Question: "q"})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = NewVectorRetriever(vs, brokenEmbedder{}).Retrieve(ctx, rag.Query{Question: "q", K: 1})
	assert.ErrorIs(t, err, rag.ErrProvider)

	_, err = NewVectorRetriever(vs, embedder.NewMock(4)).Retrieve(ctx, rag.Query{Question: "q", K: 1})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)
}
