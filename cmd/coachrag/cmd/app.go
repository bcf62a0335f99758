package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/coachrag/config"
	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
	"github.com/smallnest/coachrag/rag/embedder"
	"github.com/smallnest/coachrag/rag/engine"
	"github.com/smallnest/coachrag/store"
	redisstore "github.com/smallnest/coachrag/store/redis"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// app owns every long-lived resource of one command invocation
type app struct {
	cfg    *config.Config
	logger log.Logger
	store  rag.VectorStore
	cache  *redisstore.CachedEmbedder
	engine *engine.Engine
}

func loadConfig() (*config.Config, log.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	log.SetLogLevel(level)
	return cfg, log.GetDefaultLogger(), nil
}

// newApp builds the store, embedder, language model and engine from the
// configuration. The caller must Close the app.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.store, err = store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		TableName:   cfg.TableName,
		Dimension:   cfg.EmbedDim,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}

	emb, err := a.newEmbedder()
	if err != nil {
		a.Close()
		return nil, err
	}

	llm, err := openai.New(a.llmOptions(openai.WithModel(cfg.ChatModel))...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	a.engine, err = engine.New(a.store, emb, llm, engine.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Temperature:  cfg.ChatTemperature,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) llmOptions(opts ...openai.Option) []openai.Option {
	opts = append(opts, openai.WithToken(a.cfg.OpenAIKey))
	if a.cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(a.cfg.OpenAIBaseURL))
	}
	return opts
}

// newEmbedder builds the configured provider, validates its output and puts
// the Redis cache in front when enabled, so only checked vectors are cached.
func (a *app) newEmbedder() (rag.Embedder, error) {
	cfg := a.cfg

	var inner rag.Embedder
	switch cfg.EmbeddingProvider {
	case "openai":
		e, err := embedder.NewOpenAI(embedder.OpenAIOptions{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbedDim,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	case "langchain":
		client, err := openai.New(a.llmOptions(openai.WithEmbeddingModel(cfg.EmbeddingModel))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		lc, err := embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		inner = embedder.NewLangChain(lc, cfg.EmbedDim)
	case "mock":
		a.logger.Warn("using mock embeddings, answers will not be meaningful")
		inner = embedder.NewMock(cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", rag.ErrInvalidArgument, cfg.EmbeddingProvider)
	}

	checked := embedder.NewChecked(inner, cfg.EmbedDim)
	if !cfg.CacheEnabled() {
		return checked, nil
	}

	a.cache = redisstore.NewCachedEmbedder(checked, redisstore.CacheOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.EmbedCacheTTL,
		Model:    cfg.EmbeddingProvider + "/" + cfg.EmbeddingModel,
		Logger:   a.logger,
	})
	a.logger.Info("caching embeddings in redis at %s", cfg.RedisAddr)
	return a.cache, nil
}

// Close releases the store and the cache connection
func (a *app) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
