package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/smallnest/coachrag/rag"
)

// MemoryStore is an in-memory VectorStore. Writes are atomic under a single
// lock; ids come from a counter that is never rewound.
type MemoryStore struct {
	mu        sync.RWMutex
	chunks    []rag.Chunk
	nextID    int64
	dimension int
}

var _ rag.VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A dimension of zero accepts any
// vector length.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		chunks:    make([]rag.Chunk, 0),
		nextID:    1,
		dimension: dimension,
	}
}

// Insert adds chunks for docID
func (s *MemoryStore) Insert(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error) {
	return s.write(ctx, docID, chunks, embeddings, metadata, false)
}

// Replace swaps every chunk of docID for the given ones
func (s *MemoryStore) Replace(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any) (int, error) {
	return s.write(ctx, docID, chunks, embeddings, metadata, true)
}

func (s *MemoryStore) write(ctx context.Context, docID string, chunks []string, embeddings [][]float32, metadata map[string]any, replace bool) (int, error) {
	if err := rag.ValidateBatch(chunks, embeddings, s.dimension); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", rag.ErrStore, err)
	}

	rows := make([]rag.Chunk, len(chunks))
	for i := range chunks {
		rows[i] = rag.Chunk{
			DocID:     docID,
			Text:      chunks[i],
			Embedding: slices.Clone(embeddings[i]),
			Metadata:  rag.CloneMetadata(metadata),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if replace {
		s.chunks = slices.DeleteFunc(s.chunks, func(c rag.Chunk) bool {
			return c.DocID == docID
		})
	}
	for i := range rows {
		rows[i].ID = s.nextID
		s.nextID++
	}
	s.chunks = append(s.chunks, rows...)
	return len(rows), nil
}

// Search performs similarity search, optionally restricted to docID
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, k int, docID string) ([]rag.Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrInvalidArgument, k)
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, store expects %d", rag.ErrInvalidArgument, len(embedding), s.dimension)
	}

	s.mu.RLock()
	candidates := make([]rag.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if docID == "" || c.DocID == docID {
			candidates = append(candidates, c)
		}
	}
	s.mu.RUnlock()

	ranked := Rank(embedding, candidates, k)
	for i := range ranked {
		ranked[i].Metadata = rag.CloneMetadata(ranked[i].Metadata)
		ranked[i].Embedding = slices.Clone(ranked[i].Embedding)
	}
	return ranked, nil
}

// Delete removes every chunk of docID
func (s *MemoryStore) Delete(ctx context.Context, docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.chunks)
	s.chunks = slices.DeleteFunc(s.chunks, func(c rag.Chunk) bool {
		return c.DocID == docID
	})
	return before - len(s.chunks), nil
}

// Stats returns statistics about the store
func (s *MemoryStore) Stats(ctx context.Context) (rag.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(map[string]struct{})
	for _, c := range s.chunks {
		docs[c.DocID] = struct{}{}
	}
	return rag.StoreStats{
		Chunks:    len(s.chunks),
		Documents: len(docs),
		Dimension: s.dimension,
	}, nil
}

// Close is a no-op; the contents stay readable until the store is dropped
func (s *MemoryStore) Close() error {
	return nil
}
