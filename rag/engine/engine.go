package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
	"github.com/smallnest/coachrag/rag/retriever"
	"github.com/smallnest/coachrag/rag/splitter"
	"github.com/tmc/langchaingo/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTemperature is the sampling temperature used for answers
const DefaultTemperature = 0.2

// Config holds the tunables of an Engine
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Temperature  float64
	SystemPrompt string
	Logger       log.Logger
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ChunkSize:    splitter.DefaultChunkSize,
		ChunkOverlap: splitter.DefaultChunkOverlap,
		Temperature:  DefaultTemperature,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Engine runs the ingest path (split, embed, store) and the query path
// (embed, search, assemble, generate) over one vector store.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store     rag.VectorStore
	embedder  rag.Embedder
	llm       llms.Model
	splitter  *splitter.CharacterSplitter
	retriever *retriever.VectorRetriever
	config    Config
	logger    log.Logger
}

// New creates an engine. The store, embedder and model are owned by the
// caller, who closes them on shutdown.
func New(store rag.VectorStore, embedder rag.Embedder, llm llms.Model, config Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", rag.ErrInvalidArgument)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", rag.ErrInvalidArgument)
	}
	if llm == nil {
		return nil, fmt.Errorf("%w: language model is required", rag.ErrInvalidArgument)
	}

	sp, err := splitter.NewCharacterSplitter(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}

	return &Engine{
		store:     store,
		embedder:  embedder,
		llm:       llm,
		splitter:  sp,
		retriever: retriever.NewVectorRetriever(store, embedder),
		config:    config,
		logger:    log.OrDefault(config.Logger),
	}, nil
}

// Ingest splits, embeds and stores every item and returns the number of
// chunks added. Items whose content yields no chunks are skipped.
// The first failure aborts the call; items stored before it stay stored.
func (e *Engine) Ingest(ctx context.Context, items []rag.IngestItem, mode rag.IngestMode) (added int, err error) {
	ctx, span := tracer.Start(ctx, "rag.ingest", trace.WithAttributes(
		attribute.Int("rag.items", len(items)),
		attribute.String("rag.mode", string(mode)),
	))
	defer func() {
		span.SetAttributes(attribute.Int("rag.chunks_added", added))
		endSpan(span, err)
	}()

	mode, err = rag.ParseIngestMode(string(mode))
	if err != nil {
		return 0, err
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
	}

	replaced := make(map[string]bool)
	for _, item := range items {
		n, err := e.ingestOne(ctx, item, mode == rag.IngestReplace && !replaced[item.DocID])
		ingestDocuments.WithLabelValues(string(mode), outcome(err)).Inc()
		if err != nil {
			e.logger.Error("ingest of %s failed after %d chunks: %v", item.DocID, added, err)
			return added, err
		}
		if n > 0 && mode == rag.IngestReplace {
			replaced[item.DocID] = true
		}
		added += n
	}

	ingestChunks.Add(float64(added))
	e.logger.Info("ingested %d items, %d chunks added (mode=%s)", len(items), added, mode)
	return added, nil
}

func (e *Engine) ingestOne(ctx context.Context, item rag.IngestItem, replace bool) (int, error) {
	chunks, err := e.splitter.SplitText(item.Content)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		e.logger.Debug("skipping %s: no content", item.DocID)
		return 0, nil
	}

	start := time.Now()
	embeddings, err := e.embedder.EmbedDocuments(ctx, chunks)
	stageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, providerError(fmt.Sprintf("failed to embed %s", item.DocID), err)
	}

	start = time.Now()
	var n int
	if replace {
		n, err = e.store.Replace(ctx, item.DocID, chunks, embeddings, item.Metadata)
	} else {
		n, err = e.store.Insert(ctx, item.DocID, chunks, embeddings, item.Metadata)
	}
	stageDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", item.DocID, err)
	}

	e.logger.Debug("stored %d chunks of %s (replace=%t)", n, item.DocID, replace)
	return n, nil
}

// Ask answers q from the k chunks closest to the question. An empty
// retrieval is not an error: the model is told no context was found.
func (e *Engine) Ask(ctx context.Context, q rag.Query) (answer *rag.Answer, err error) {
	ctx, span := tracer.Start(ctx, "rag.ask")
	defer func() {
		askTotal.WithLabelValues(outcome(err)).Inc()
		endSpan(span, err)
	}()

	q, err = q.Normalize()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.k", q.K), attribute.String("rag.doc_id", q.DocID))

	start := time.Now()
	chunks, err := e.retriever.Retrieve(ctx, q)
	stageDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	askSources.Observe(float64(len(chunks)))
	span.SetAttributes(attribute.Int("rag.sources", len(chunks)))
	if len(chunks) == 0 {
		e.logger.Info("no context found for question (doc_id=%q)", q.DocID)
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, e.config.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildUserMessage(BuildContext(chunks), q.Question)),
	}

	start = time.Now()
	resp, err := e.llm.GenerateContent(ctx, messages, llms.WithTemperature(e.config.Temperature))
	stageDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, providerError("failed to generate answer", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: language model returned no choices", rag.ErrProvider)
	}

	sources := make([]rag.Source, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source()
	}

	return &rag.Answer{
		Text:    resp.Choices[0].Content,
		Sources: sources,
	}, nil
}

// Delete removes every chunk of docID
func (e *Engine) Delete(ctx context.Context, docID string) (int, error) {
	if err := (rag.IngestItem{DocID: docID}).Validate(); err != nil {
		return 0, err
	}
	n, err := e.store.Delete(ctx, docID)
	if err != nil {
		return 0, err
	}
	e.logger.Info("deleted %d chunks of %s", n, docID)
	return n, nil
}

// Stats reports the contents of the underlying store
func (e *Engine) Stats(ctx context.Context) (rag.StoreStats, error) {
	return e.store.Stats(ctx)
}

// providerError keeps classified errors and marks everything else as a
// provider failure.
func providerError(msg string, err error) error {
	if errors.Is(err, rag.ErrProvider) || errors.Is(err, rag.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", rag.ErrProvider, msg, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return rag.ErrorKind(err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
