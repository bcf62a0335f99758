package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/smallnest/coachrag/rag"
)

// Default embedding model settings
const (
	DefaultModel     = "text-embedding-3-small"
	DefaultDimension = 1536
)

// OpenAIOptions configures the OpenAI embedder
type OpenAIOptions struct {
	APIKey    string
	BaseURL   string // Optional, defaults to the public API
	Model     string // Default "text-embedding-3-small"
	Dimension int    // Default 1536
}

// OpenAI embeds text through the OpenAI embeddings endpoint. One client is
// created per embedder and reused for every call.
type OpenAI struct {
	client    *openai.Client
	model     string
	dimension int
}

var _ rag.Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", rag.ErrInvalidArgument)
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	dim := opts.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dim,
	}, nil
}

// Model returns the embedding model name
func (e *OpenAI) Model() string {
	return e.model
}

// Dimension returns the configured embedding dimension
func (e *OpenAI) Dimension() int {
	return e.dimension
}

// EmbedDocuments embeds texts in one request
func (e *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create embeddings: %w", rag.ErrProvider, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d inputs",
			rag.ErrProvider, len(resp.Data), len(texts))
	}

	// The API documents Index as the position in the input; do not rely on
	// response order.
	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || result[d.Index] != nil {
			return nil, fmt.Errorf("%w: provider returned unexpected embedding index %d", rag.ErrProvider, d.Index)
		}
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: model %s returned dimension %d, expected %d",
				rag.ErrProvider, e.model, len(d.Embedding), e.dimension)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}

// EmbedQuery embeds a single text
func (e *OpenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// embedOne routes a single text through EmbedDocuments so both paths share
// one request shape
func embedOne(ctx context.Context, e rag.Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", rag.ErrProvider, len(vecs))
	}
	return vecs[0], nil
}
