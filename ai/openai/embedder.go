package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	logger     *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the node and relationship instances.
func newEmbedder(host, model string, dimensions int) (*Embedder, error) {
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:   embedder,
		model:      model,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "openai-embedder", "model", model),
	}, nil
}

// NewNodeEmbedder creates the embedder for statute unit text.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewNodeEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newEmbedder(config.EmbeddingHost, config.NodeModel, config.NodeDimensions)
}

// NewRelationshipEmbedder creates the embedder for edge context text.
func NewRelationshipEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newEmbedder(config.EmbeddingHost, config.RelationshipModel, config.RelationshipDimensions)
}

// Dimensions reports the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return nil, fmt.Errorf("%w: empty response from %s", core.ErrEmbeddingUnavailable, e.model)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// Vectors whose length differs from the configured dimension are rejected.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}

	for i, v := range vectors {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: %s returned %d dimensions for text %d, expected %d",
				core.ErrDimensionMismatch, e.model, len(v), i, e.dimensions)
		}
	}
	return vectors, nil
}
