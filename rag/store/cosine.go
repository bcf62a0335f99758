package store

import (
	"math"
	"sort"

	"github.com/smallnest/coachrag/rag"
)

// CosineDistance returns 1 - cosine similarity of a and b. Vectors of
// different length or with zero norm are maximally uncorrelated (distance 1).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Rank scores candidates against query, orders them by ascending distance
// then ascending id, and keeps the first k
func Rank(query []float32, candidates []rag.Chunk, k int) []rag.Chunk {
	ranked := make([]rag.Chunk, len(candidates))
	for i, c := range candidates {
		c.Distance = CosineDistance(query, c.Embedding)
		ranked[i] = c
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].ID < ranked[j].ID
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
