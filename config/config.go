// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when Load is called without files
const DefaultEnvFile = ".env"

// Config holds the application configuration.
type Config struct {
	// Provider credentials
	OpenAIKey     string
	OpenAIBaseURL string

	// Embeddings
	EmbeddingProvider string // "openai", "langchain" or "mock"
	EmbeddingModel    string
	EmbedDim          int

	// Answer generation
	ChatModel       string
	ChatTemperature float64

	// Splitting
	ChunkSize    int
	ChunkOverlap int

	// Vector store
	StoreDriver string // "postgres", "sqlite" or "memory"
	DatabaseURL string
	TableName   string
	SQLitePath  string

	// Embedding cache, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EmbedCacheTTL time.Duration

	// Server
	HTTPAddr string
	LogLevel string
}

// Load reads the given env files, or DefaultEnvFile when none are given, and
// then the process environment, whose non-empty values take precedence. A missing default
// file is not an error. All validation failures are reported together.
func Load(files ...string) (*Config, error) {
	fileValues := map[string]string{}
	if len(files) == 0 {
		values, err := godotenv.Read(DefaultEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", DefaultEnvFile, err)
		}
		if err == nil {
			fileValues = values
		}
	} else {
		values, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env files: %w", err)
		}
		fileValues = values
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	})
}

// FromLookup builds a Config from an arbitrary key lookup
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := &reader{lookup: lookup}

	cfg := &Config{
		OpenAIKey:         r.getString("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     r.getString("OPENAI_BASE_URL", ""),
		EmbeddingProvider: strings.ToLower(r.getString("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:    r.getString("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbedDim:          r.getInt("EMBED_DIM", 1536),
		ChatModel:         r.getString("CHAT_MODEL", "gpt-4.1-mini"),
		ChatTemperature:   r.getFloat("CHAT_TEMPERATURE", 0.2),
		ChunkSize:         r.getInt("CHUNK_SIZE", 1200),
		ChunkOverlap:      r.getInt("CHUNK_OVERLAP", 200),
		StoreDriver:       strings.ToLower(r.getString("STORE_DRIVER", "postgres")),
		DatabaseURL:       r.getString("DATABASE_URL", ""),
		TableName:         r.getString("RAG_TABLE", "rag_chunks"),
		SQLitePath:        r.getString("SQLITE_PATH", "coachrag.db"),
		RedisAddr:         r.getString("REDIS_ADDR", ""),
		RedisPassword:     r.getString("REDIS_PASSWORD", ""),
		RedisDB:           r.getInt("REDIS_DB", 0),
		EmbedCacheTTL:     r.getDuration("EMBED_CACHE_TTL", 24*time.Hour),
		HTTPAddr:          r.getString("HTTP_ADDR", ":8000"),
		LogLevel:          r.getString("LOG_LEVEL", "info"),
	}

	r.errs = append(r.errs, cfg.validate()...)
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY environment variable is required"))
	}
	switch c.EmbeddingProvider {
	case "openai", "langchain", "mock":
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER must be openai, langchain or mock, got %q", c.EmbeddingProvider))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is required when using the postgres store"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty when using the sqlite store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres, sqlite or memory, got %q", c.StoreDriver))
	}
	if c.EmbedCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("EMBED_CACHE_TTL must not be negative, got %s", c.EmbedCacheTTL))
	}
	return errs
}

// CacheEnabled reports whether embeddings are cached in Redis
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) getString(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) getInt(key string, def int) int {
	v := r.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) getFloat(key string, def float64) float64 {
	v := r.getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (r *reader) getDuration(key string, def time.Duration) time.Duration {
	v := r.getString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
