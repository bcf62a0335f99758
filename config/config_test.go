package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"DATABASE_URL":   "postgres://localhost/rag",
	}))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbedDim)
	assert.Equal(t, "gpt-4.1-mini", cfg.ChatModel)
	assert.InDelta(t, 0.2, cfg.ChatTemperature, 1e-9)
	assert.Equal(t, 1200, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "rag_chunks", cfg.TableName)
	assert.Equal(t, 24*time.Hour, cfg.EmbedCacheTTL)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.CacheEnabled())
}

func TestFromLookupOverrides(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{
		"OPENAI_API_KEY":     "sk-test",
		"EMBEDDING_PROVIDER": "Mock",
		"EMBED_DIM":          "8",
		"STORE_DRIVER":       "sqlite",
		"SQLITE_PATH":        "/tmp/rag.db",
		"CHUNK_SIZE":         "300",
		"CHUNK_OVERLAP":      "0",
		"REDIS_ADDR":         "localhost:6379",
		"EMBED_CACHE_TTL":    "90m",
		"CHAT_TEMPERATURE":   "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.EmbeddingProvider)
	assert.Equal(t, 8, cfg.EmbedDim)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 0, cfg.ChunkOverlap)
	assert.Equal(t, 90*time.Minute, cfg.EmbedCacheTTL)
	assert.Equal(t, 0.0, cfg.ChatTemperature)
	assert.True(t, cfg.CacheEnabled())
}

func TestFromLookupAggregatesErrors(t *testing.T) {
	_, err := FromLookup(mapLookup(map[string]string{
		"EMBED_DIM":     "many",
		"CHUNK_OVERLAP": "1200",
		"STORE_DRIVER":  "postgres",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "OPENAI_API_KEY")
	assert.Contains(t, msg, "EMBED_DIM: invalid integer")
	assert.Contains(t, msg, "CHUNK_OVERLAP")
	assert.Contains(t, msg, "DATABASE_URL")
}

func TestFromLookupRejectsUnknownDrivers(t *testing.T) {
	_, err := FromLookup(mapLookup(map[string]string{
		"OPENAI_API_KEY":     "sk-test",
		"STORE_DRIVER":       "mongo",
		"EMBEDDING_PROVIDER": "cohere",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "EMBEDDING_PROVIDER")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "OPENAI_API_KEY=sk-from-file\nSTORE_DRIVER=memory\nCHAT_MODEL=file-model\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CHAT_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.OpenAIKey)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "env-model", cfg.ChatModel, "environment wins over the file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
