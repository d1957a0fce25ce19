package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/codesense/ai"
	"github.com/poiesic/codesense/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse is returned when the service answers with fewer vectors than texts.
var ErrEmptyResponse = errors.New("embedding service returned too few vectors")

// Embedder implements ai.Embedder against an OpenAI-compatible /embeddings endpoint.
// Requests are paced by a client-side limiter and every response is checked for a
// consistent vector length before it reaches a store.
type Embedder struct {
	client  embeddings.Embedder
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.Token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	// Newlines are kept so code is embedded as written.
	client, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		client:  client,
		limiter: newLimiter(config),
		logger:  slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

func newLimiter(config *ai.Config) *rate.Limiter {
	if config.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single query or entity text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch in one request. The result has one vector per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embed(ctx, texts)
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	e.logger.Debug("embedding texts", "count", len(texts))

	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("embedding request failed", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) < len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrEmptyResponse, len(vectors), len(texts))
	}
	vectors = vectors[:len(texts)]

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrEmptyResponse)
	}
	for _, v := range vectors[1:] {
		if err := core.CheckDimension(dim, v); err != nil {
			e.logger.Error("embedding service returned mixed dimensions", "expected", dim, "actual", len(v))
			return nil, err
		}
	}
	return vectors, nil
}
