package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
)

// CacheOptions configuration for the Redis embedding cache
type CacheOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "coachrag:"
	TTL      time.Duration // Expiration for cached vectors, default 0 (no expiration)
	Model    string        // Embedding model name, part of every key
	Logger   log.Logger
}

// CachedEmbedder memoizes embeddings in Redis, keyed by model and text hash.
// Cache failures degrade to calling the wrapped embedder.
type CachedEmbedder struct {
	inner  rag.Embedder
	client *redis.Client
	prefix string
	ttl    time.Duration
	model  string
	logger log.Logger
}

var _ rag.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a Redis cache
func NewCachedEmbedder(inner rag.Embedder, opts CacheOptions) *CachedEmbedder {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewCachedEmbedderWithClient(inner, client, opts)
}

// NewCachedEmbedderWithClient wraps inner using an existing client
func NewCachedEmbedderWithClient(inner rag.Embedder, client *redis.Client, opts CacheOptions) *CachedEmbedder {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "coachrag:"
	}

	return &CachedEmbedder{
		inner:  inner,
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
		model:  opts.Model,
		logger: log.OrDefault(opts.Logger),
	}
}

func (c *CachedEmbedder) embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%sembedding:%s:%d:%s", c.prefix, c.model, c.inner.Dimension(), hex.EncodeToString(sum[:]))
}

// Dimension returns the wrapped embedder's dimension
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// EmbedQuery embeds a single text through the cache
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments returns cached vectors and embeds only the misses, in one
// call to the wrapped embedder
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.embeddingKey(text)
	}

	result := make([][]float32, len(texts))
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed: %v", err)
		cached = nil
	}
	for i, v := range cached {
		if v == nil {
			continue
		}
		data, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(data), &vec); err != nil || len(vec) != c.inner.Dimension() {
			continue
		}
		result[i] = vec
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range result {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	c.logger.Debug("embedding cache: %d hits, %d misses", len(texts)-len(missIdx), len(missIdx))
	if len(missIdx) == 0 {
		return result, nil
	}

	fresh, err := c.inner.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", rag.ErrProvider, len(fresh), len(missTexts))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		result[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedding: %w", err)
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("embedding cache write failed: %v", err)
	}

	return result, nil
}

// Close closes the Redis client
func (c *CachedEmbedder) Close() error {
	return c.client.Close()
}
