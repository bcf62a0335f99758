// Package redis caches embeddings in Redis.
//
// CachedEmbedder wraps a rag.Embedder. Vectors are keyed by model, dimension
// and the SHA-256 of the text, so a model change never serves stale vectors.
// When Redis is unreachable the wrapped embedder is called directly.
package redis
