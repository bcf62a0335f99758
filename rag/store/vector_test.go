package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/smallnest/coachrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert and Search", func(t *testing.T) {
		s := NewMemoryStore(3)
		n, err := s.Insert(ctx, "A", []string{"hello", "world"}, [][]float32{{1, 0, 0}, {0, 1, 0}}, map[string]any{"source": "a.txt"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		results, err := s.Search(ctx, []float32{1, 0.1, 0}, 1, "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "hello", results[0].Text)
		assert.Equal(t, int64(1), results[0].ID)
		assert.Equal(t, "a.txt", results[0].Metadata["source"])
		assert.Less(t, results[0].Distance, 0.01)
	})

	t.Run("Filter by doc id", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Insert(ctx, "A", []string{"a1", "a2"}, [][]float32{{1, 0}, {0, 1}}, nil)
		require.NoError(t, err)
		_, err = s.Insert(ctx, "B", []string{"b1"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)

		results, err := s.Search(ctx, []float32{1, 0}, 10, "A")
		require.NoError(t, err)
		assert.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, "A", r.DocID)
		}

		results, err = s.Search(ctx, []float32{1, 0}, 10, "C")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Ties break by id", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Insert(ctx, "A", []string{"first", "second"}, [][]float32{{1, 0}, {2, 0}}, nil)
		require.NoError(t, err)
		_, err = s.Insert(ctx, "B", []string{"third"}, [][]float32{{3, 0}}, nil)
		require.NoError(t, err)

		results, err := s.Search(ctx, []float32{1, 0}, 3, "")
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{results[0].ID, results[1].ID, results[2].ID})

		again, err := s.Search(ctx, []float32{1, 0}, 3, "")
		require.NoError(t, err)
		assert.Equal(t, results, again)
	})

	t.Run("Empty store", func(t *testing.T) {
		s := NewMemoryStore(2)
		results, err := s.Search(ctx, []float32{1, 0}, 5, "")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Invalid k", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Search(ctx, []float32{1, 0}, 0, "")
		assert.ErrorIs(t, err, rag.ErrInvalidArgument)
	})

	t.Run("Length mismatch writes nothing", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Insert(ctx, "A", []string{"a", "b"}, [][]float32{{1, 0}}, nil)
		assert.ErrorIs(t, err, rag.ErrInvalidArgument)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Chunks)
	})

	t.Run("Dimension mismatch writes nothing", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Insert(ctx, "A", []string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}}, nil)
		assert.ErrorIs(t, err, rag.ErrInvalidArgument)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Chunks)

		_, err = s.Search(ctx, []float32{1, 0, 0}, 1, "")
		assert.ErrorIs(t, err, rag.ErrInvalidArgument)
	})

	t.Run("Cancelled context writes nothing", func(t *testing.T) {
		s := NewMemoryStore(2)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Insert(cctx, "A", []string{"a"}, [][]float32{{1, 0}}, nil)
		assert.ErrorIs(t, err, rag.ErrStore)
		assert.ErrorIs(t, err, context.Canceled)

		stats, _ := s.Stats(ctx)
		assert.Equal(t, 0, stats.Chunks)
	})

	t.Run("Replace and Delete", func(t *testing.T) {
		s := NewMemoryStore(2)
		_, err := s.Insert(ctx, "A", []string{"old1", "old2"}, [][]float32{{1, 0}, {0, 1}}, nil)
		require.NoError(t, err)
		_, err = s.Insert(ctx, "B", []string{"other"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)

		n, err := s.Replace(ctx, "A", []string{"new"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		results, err := s.Search(ctx, []float32{1, 0}, 10, "A")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "new", results[0].Text)
		assert.Equal(t, int64(4), results[0].ID, "ids are never reused")

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, rag.StoreStats{Chunks: 2, Documents: 2, Dimension: 2}, stats)

		removed, err := s.Delete(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		stats, _ = s.Stats(ctx)
		assert.Equal(t, 1, stats.Chunks)
	})

	t.Run("Results do not alias stored embeddings", func(t *testing.T) {
		s := NewMemoryStore(2)
		vec := []float32{1, 0}
		_, err := s.Insert(ctx, "A", []string{"a"}, [][]float32{vec}, nil)
		require.NoError(t, err)
		vec[0] = 9

		results, err := s.Search(ctx, []float32{1, 0}, 1, "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, []float32{1, 0}, results[0].Embedding)
		results[0].Embedding[0] = -1

		again, err := s.Search(ctx, []float32{1, 0}, 1, "")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, again[0].Embedding)
		assert.InDelta(t, 0.0, again[0].Distance, 1e-9)
	})

	t.Run("Metadata is copied per row", func(t *testing.T) {
		s := NewMemoryStore(2)
		meta := map[string]any{"source": "x"}
		_, err := s.Insert(ctx, "A", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, meta)
		require.NoError(t, err)
		meta["source"] = "mutated"

		results, err := s.Search(ctx, []float32{1, 0}, 2, "")
		require.NoError(t, err)
		results[0].Metadata["source"] = "changed"
		assert.Equal(t, "x", results[1].Metadata["source"])

		again, _ := s.Search(ctx, []float32{1, 0}, 2, "")
		assert.Equal(t, "x", again[0].Metadata["source"])
	})
}

func TestMemoryStoreConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := fmt.Sprintf("D%d", i%4)
			_, err := s.Insert(ctx, doc, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {1, 1}}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	results, err := s.Search(ctx, []float32{1, 0}, 100, "")
	require.NoError(t, err)
	assert.Len(t, results, 60)

	seen := make(map[int64]bool)
	for _, r := range results {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, CosineDistance([]float32{1}, []float32{1, 0}))
}
