package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// BatchProcessor embeds batches of stored items and writes them back.
type BatchProcessor[T any] struct {
	embedder       ai.Embedder
	text           func(T) string
	apply          func(T, []float32)
	save           func(context.Context, ...T) error
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewNodeBatchProcessor embeds node content with the node embedder.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewNodeBatchProcessor(store storage.GraphStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor[*core.Node] {
	return &BatchProcessor[*core.Node]{
		embedder:       embedder,
		text:           func(n *core.Node) string { return n.Content },
		apply:          func(n *core.Node, v []float32) { n.Vector = v },
		save:           store.PutNodes,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// NewEdgeBatchProcessor embeds edge context with the relationship embedder.
func NewEdgeBatchProcessor(store storage.GraphStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor[*core.ContainmentEdge] {
	return &BatchProcessor[*core.ContainmentEdge]{
		embedder:       embedder,
		text:           func(e *core.ContainmentEdge) string { return e.Context },
		apply:          func(e *core.ContainmentEdge, v []float32) { e.Vector = v },
		save:           store.PutEdges,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch and stores the updated items.
// Vectors are normalized to unit length before they are stored.
func (bp *BatchProcessor[T]) Process(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = bp.text(item)
	}

	embeddings, err := RetryWithBackoff(ctx, func(ctx context.Context) ([][]float32, error) {
		return bp.embedder.EmbedTexts(ctx, texts)
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(items) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(items), len(embeddings))
	}

	for i, item := range items {
		bp.apply(item, core.Normalize(embeddings[i]))
	}

	if err := bp.save(ctx, items...); err != nil {
		return fmt.Errorf("failed to update items: %w", err)
	}
	return nil
}
