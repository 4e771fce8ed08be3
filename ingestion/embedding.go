package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// nodeEmbeddingProcessor embeds node contents and routes embedded leaves
// into their domains.
type nodeEmbeddingProcessor struct {
	store    storage.GraphStore
	embedder ai.Embedder
	assigner Assigner
	logger   *slog.Logger
}

var _ processor[core.NodeID] = (*nodeEmbeddingProcessor)(nil)

// newNodeEmbeddingProcessor creates a new node embedding processor.
// assigner may be nil.
func newNodeEmbeddingProcessor(store storage.GraphStore, embedder ai.Embedder, assigner Assigner, logger *slog.Logger) (*nodeEmbeddingProcessor, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &nodeEmbeddingProcessor{
		store:    store,
		embedder: embedder,
		assigner: assigner,
		logger:   logger.With("processor", "node-embeddings"),
	}, nil
}

// process embeds the nodes that have no vector yet, then assigns every
// leaf among ids to a domain.
func (np *nodeEmbeddingProcessor) process(ctx context.Context, ids ...core.NodeID) error {
	np.logger.Info("processing nodes for embeddings", "nodes", len(ids))

	nodes, err := np.store.GetNodes(ctx, ids...)
	if err != nil {
		np.logger.Error("error retrieving nodes", "err", err)
		return err
	}

	pending := slices.DeleteFunc(slices.Clone(nodes), func(n *core.Node) bool {
		return len(n.Vector) > 0
	})
	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for i, node := range pending {
			texts[i] = node.Content
		}

		np.logger.Debug("generating embeddings for nodes", "nodes", len(texts))
		embeddings, err := np.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			np.logger.Error("error generating embeddings", "err", err)
			return err
		}
		if len(embeddings) != len(pending) {
			return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(pending), len(embeddings))
		}
		for i := range embeddings {
			pending[i].Vector = embeddings[i]
		}
		if err := np.store.PutNodes(ctx, pending...); err != nil {
			return err
		}
	}

	if np.assigner == nil || np.assigner.Len() == 0 {
		return nil
	}
	for _, node := range nodes {
		if !node.Leaf {
			continue
		}
		domain, err := np.assigner.AssignNode(ctx, node)
		if err != nil {
			return fmt.Errorf("assigning node %s: %w", node.ID, err)
		}
		np.logger.Debug("node routed", "node", node.ID, "domain", domain)
	}
	return nil
}

// edgeEmbeddingProcessor embeds the context text of containment edges for
// the relationship index.
type edgeEmbeddingProcessor struct {
	store    storage.GraphStore
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor[edgeKey] = (*edgeEmbeddingProcessor)(nil)

// newEdgeEmbeddingProcessor creates a new edge embedding processor.
func newEdgeEmbeddingProcessor(store storage.GraphStore, embedder ai.Embedder, logger *slog.Logger) (*edgeEmbeddingProcessor, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &edgeEmbeddingProcessor{
		store:    store,
		embedder: embedder,
		logger:   logger.With("processor", "edge-embeddings"),
	}, nil
}

// process embeds the given edges.
func (ep *edgeEmbeddingProcessor) process(ctx context.Context, keys ...edgeKey) error {
	ep.logger.Info("processing edges for embeddings", "edges", len(keys))

	edges := make([]*core.ContainmentEdge, 0, len(keys))
	for _, key := range keys {
		edge, err := ep.store.GetEdge(ctx, key.source, key.target)
		if err != nil {
			ep.logger.Error("error retrieving edge", "source", key.source, "target", key.target, "err", err)
			return err
		}
		edges = append(edges, edge)
	}

	texts := make([]string, len(edges))
	for i, edge := range edges {
		texts[i] = edge.Context
	}

	ep.logger.Debug("generating embeddings for edges", "edges", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}
	if len(embeddings) != len(edges) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(edges), len(embeddings))
	}
	for i := range embeddings {
		edges[i].Vector = embeddings[i]
	}

	return ep.store.PutEdges(ctx, edges...)
}
