package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/smallnest/coachrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newEmbeddingServer answers the embeddings endpoint with vectors of dim
// whose first component is the input length. Responses are sent
// in reverse order to exercise index handling.
func newEmbeddingServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": vec,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL, Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.Model())
	assert.Equal(t, 4, e.Dimension())

	t.Run("Order follows input index", func(t *testing.T) {
		vecs, err := e.EmbedDocuments(ctx, []string{"a", "bbb", "cc"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		assert.Equal(t, float32(1), vecs[0][0])
		assert.Equal(t, float32(3), vecs[1][0])
		assert.Equal(t, float32(2), vecs[2][0])
	})

	t.Run("Query matches single document", func(t *testing.T) {
		q, err := e.EmbedQuery(ctx, "hello")
		require.NoError(t, err)
		docs, err := e.EmbedDocuments(ctx, []string{"hello"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{q}, docs)
	})

	t.Run("Empty input makes no request", func(t *testing.T) {
		before := calls.Load()
		vecs, err := e.EmbedDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.Equal(t, before, calls.Load())
	})

	t.Run("Dimension mismatch", func(t *testing.T) {
		wrong, err := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL, Dimension: 8})
		require.NoError(t, err)
		_, err = wrong.EmbedQuery(ctx, "hello")
		assert.ErrorIs(t, err, rag.ErrProvider)
	})
}

func TestOpenAIEmbedderErrors(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = e.EmbedDocuments(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, rag.ErrProvider)
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewMock(16)

	q, err := e.EmbedQuery(ctx, "coaching")
	require.NoError(t, err)
	docs, err := e.EmbedDocuments(ctx, []string{"coaching"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{q}, docs)
	assert.Len(t, q, 16)

	other, err := e.EmbedQuery(ctx, "feedback")
	require.NoError(t, err)
	assert.NotEqual(t, q, other)

	empty, err := e.EmbedQuery(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 16)
}

type fakeEmbedder struct {
	vecs [][]float32
	err  error
	dim  int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return f.vecs, f.err
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vecs[0], nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func TestCheckedEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("Passes valid vectors", func(t *testing.T) {
		c := NewChecked(&fakeEmbedder{vecs: [][]float32{{1, 0}}, dim: 2}, 0)
		assert.Equal(t, 2, c.Dimension())
		vecs, err := c.EmbedDocuments(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Len(t, vecs, 1)
	})

	t.Run("Wrong dimension", func(t *testing.T) {
		c := NewChecked(&fakeEmbedder{vecs: [][]float32{{1, 0, 0}}, dim: 3}, 2)
		_, err := c.EmbedDocuments(ctx, []string{"a"})
		assert.ErrorIs(t, err, rag.ErrProvider)
		_, err = c.EmbedQuery(ctx, "a")
		assert.ErrorIs(t, err, rag.ErrProvider)
	})

	t.Run("Wrong count", func(t *testing.T) {
		c := NewChecked(&fakeEmbedder{vecs: [][]float32{{1, 0}}, dim: 2}, 2)
		_, err := c.EmbedDocuments(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, rag.ErrProvider)
	})

	t.Run("Classifies raw errors", func(t *testing.T) {
		c := NewChecked(&fakeEmbedder{err: errors.New("connection refused"), dim: 2}, 2)
		_, err := c.EmbedDocuments(ctx, []string{"a"})
		assert.ErrorIs(t, err, rag.ErrProvider)
	})

	t.Run("Keeps context errors", func(t *testing.T) {
		c := NewChecked(&fakeEmbedder{err: context.Canceled, dim: 2}, 2)
		_, err := c.EmbedQuery(ctx, "a")
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, rag.ErrProvider)
	})
}

type fakeLCEmbedder struct{}

func (fakeLCEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i, text := range texts {
		res[i] = []float32{float32(len(text)), 1}
	}
	return res, nil
}

func (fakeLCEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	// Deliberately different from EmbedDocuments; the adapter must not use it.
	return []float32{0, 0}, nil
}

func TestLangChainEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewLangChain(fakeLCEmbedder{}, 2)
	assert.Equal(t, 2, e.Dimension())

	q, err := e.EmbedQuery(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, q)

	docs, err := e.EmbedDocuments(ctx, []string{"abc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}, {1, 1}}, docs)
}
