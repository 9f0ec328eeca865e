package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Each Embedder is bound to the credential it was constructed with.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config, credential string) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, core.ErrCredentialRequired
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(credential),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, classifyError(err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, classifyError(err)
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates an embedder bound to the given credential.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, credential string) (ai.Embedder, error) {
	return newEmbedder(config, credential)
}

// NewEmbedderFactory returns an ai.EmbedderFactory closed over the config.
// The engine calls it lazily with the first caller-supplied credential.
func NewEmbedderFactory(config *ai.Config) ai.EmbedderFactory {
	return func(credential string) (ai.Embedder, error) {
		return NewEmbedder(config, credential)
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, classifyError(err)
	}

	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, classifyError(err)
	}

	return vectors, nil
}
