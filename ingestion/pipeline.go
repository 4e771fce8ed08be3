package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// Pipeline orchestrates the ingestion of statute units and their
// containment edges. Embeddings are computed on worker pools after the
// graph is stored.
type Pipeline struct {
	store     storage.GraphStore
	assigner  Assigner
	nodePool  *ants.Pool
	edgePool  *ants.Pool
	nodeProc  processor[core.NodeID]
	edgeProc  processor[edgeKey]
	batchSize int
	logger    *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	failed []error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		if p.nodePool != nil {
			p.nodePool.Release()
		}
		if p.edgePool != nil {
			p.edgePool.Release()
		}

		// Create new pools
		nodePool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		edgePool, err := ants.NewPool(size)
		if err != nil {
			nodePool.Release()
			return err
		}

		p.nodePool = nodePool
		p.edgePool = edgePool
		return nil
	}
}

// WithBatchSize sets how many nodes or edges one embedding request covers.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithAssigner routes embedded leaf nodes into domains. Without one, nodes
// stay unassigned until the next bootstrap.
func WithAssigner(assigner Assigner) Option {
	return func(p *Pipeline) error {
		p.assigner = assigner
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.GraphStore, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrGraphStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	nodePool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	edgePool, err := ants.NewPool(poolSize)
	if err != nil {
		nodePool.Release()
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		nodePool:  nodePool,
		edgePool:  edgePool,
		batchSize: 32,
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create processors after options are applied (so they get final config)
	nodeProc, err := newNodeEmbeddingProcessor(store, provider.NodeEmbedder(), p.assigner, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	edgeProc, err := newEdgeEmbeddingProcessor(store, provider.RelationshipEmbedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.nodeProc = nodeProc
	p.edgeProc = edgeProc

	return p, nil
}

// Ingest stores nodes and edges and queues their embedding. Every node and
// edge is validated first; nothing is stored if any is invalid. Edges
// without context text are stored but not embedded.
//
// Embedding and domain assignment happen asynchronously; call Wait to
// block until they finish and collect their errors.
func (p *Pipeline) Ingest(ctx context.Context, nodes []*core.Node, edges []*core.ContainmentEdge) error {
	var invalid []error
	for _, node := range nodes {
		if err := core.ValidateNode(node); err != nil {
			invalid = append(invalid, err)
		}
	}
	for _, edge := range edges {
		if err := core.ValidateEdge(edge); err != nil {
			invalid = append(invalid, err)
		}
	}
	if len(invalid) > 0 {
		return errors.Join(invalid...)
	}

	if err := p.store.PutNodes(ctx, nodes...); err != nil {
		return err
	}
	if err := p.store.PutEdges(ctx, edges...); err != nil {
		return err
	}

	ids := make([]core.NodeID, len(nodes))
	for i, node := range nodes {
		ids[i] = node.ID
	}
	var keys []edgeKey
	for _, edge := range edges {
		if edge.Context != "" && len(edge.Vector) == 0 {
			keys = append(keys, edgeKey{source: edge.Source, target: edge.Target})
		}
	}

	for batch := range slices.Chunk(ids, p.batchSize) {
		p.submit(p.nodePool, "node embeddings", func() error {
			return p.nodeProc.process(context.Background(), batch...)
		})
	}
	for batch := range slices.Chunk(keys, p.batchSize) {
		p.submit(p.edgePool, "edge embeddings", func() error {
			return p.edgeProc.process(context.Background(), batch...)
		})
	}
	return nil
}

// submit runs task on pool and records its error for Wait.
func (p *Pipeline) submit(pool *ants.Pool, name string, task func() error) {
	p.wg.Add(1)
	err := pool.Submit(func() {
		defer p.wg.Done()
		if err := task(); err != nil {
			p.logger.Error("error processing "+name, "err", err)
			p.fail(err)
		}
	})
	if err != nil {
		p.wg.Done()
		p.logger.Error("error submitting "+name, "err", err)
		p.fail(err)
	}
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, err)
}

// Wait blocks until all queued processing has finished and returns the
// errors it produced since the last Wait.
func (p *Pipeline) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.failed...)
	p.failed = nil
	return err
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.nodePool != nil {
		p.nodePool.Release()
	}
	if p.edgePool != nil {
		p.edgePool.Release()
	}
}
