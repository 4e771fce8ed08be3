// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lexis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/ai/openai"
	"github.com/poiesic/lexis/cluster"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/ingestion"
	"github.com/poiesic/lexis/manager"
	"github.com/poiesic/lexis/reembed"
	"github.com/poiesic/lexis/registry"
	"github.com/poiesic/lexis/search"
	"github.com/poiesic/lexis/storage"
	"github.com/poiesic/lexis/storage/badger"
	"github.com/poiesic/lexis/storage/neo4j"
)

// labelSamples is the number of member texts shown to the domain labeler.
const labelSamples = 5

// Engine owns the store, AI provider, domain registry and agent manager of
// one process.
type Engine struct {
	config   *Config
	store    storage.Store
	provider ai.AIProvider
	registry *registry.Registry
	manager  *manager.Manager
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of building an OpenAI-compatible one
// from the AI configuration. The engine takes ownership of provider.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine opens the configured store and AI provider and loads the
// persisted domains.
func NewEngine(ctx context.Context, config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	store, err := openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(config.AI)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	e := &Engine{
		config:   config,
		store:    store,
		provider: provider,
		logger:   logger.With("component", "engine"),
	}

	e.registry, err = registry.New(store, provider,
		registry.WithConfig(config.Registry),
		registry.WithLogger(logger),
		registry.WithAgentOptions(search.WithConfig(config.Search), search.WithLogger(logger)),
	)
	if err != nil {
		e.Close()
		return nil, err
	}
	if err := e.registry.Load(ctx); err != nil {
		e.Close()
		return nil, err
	}

	e.manager, err = manager.New(e.registry, store, provider,
		manager.WithConfig(config.Manager),
		manager.WithLogger(logger),
	)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func openStore(ctx context.Context, config *Config) (storage.Store, error) {
	switch config.Store.Backend {
	case StoreMemory:
		store, err := badger.NewMemoryStore()
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreNeo4j:
		store, err := neo4j.Open(ctx, config.Neo4j)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, config.AI.NodeDimensions, config.AI.RelationshipDimensions); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case StoreBadger:
		store, err := badger.Open(config.Store.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("store config: unknown backend %q", config.Store.Backend)
	}
}

// Close releases the manager's workers and closes the provider and store.
func (e *Engine) Close() error {
	if e.manager != nil {
		e.manager.Release()
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing graph store", "err", err)
		return err
	}
	return nil
}

func (e *Engine) Store() storage.Store {
	return e.store
}

func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

func (e *Engine) Manager() *manager.Manager {
	return e.manager
}

// NewIngestionPipeline creates a pipeline that routes new leaves through
// the engine's registry.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{
		ingestion.WithAssigner(e.registry),
		ingestion.WithLogger(e.logger),
	}
	if e.config.Ingestion.PoolSize > 0 {
		defaults = append(defaults, ingestion.WithPoolSize(e.config.Ingestion.PoolSize))
	}
	if e.config.Ingestion.BatchSize > 0 {
		defaults = append(defaults, ingestion.WithBatchSize(e.config.Ingestion.BatchSize))
	}
	return ingestion.NewPipeline(e.store, e.provider, append(defaults, opts...)...)
}

// NewNodeReembedder recomputes node vectors with the current node model and
// recenters every domain afterwards.
func (e *Engine) NewNodeReembedder(progress io.Writer) (*reembed.Reembedder[*core.Node], error) {
	return reembed.NewNodeReembedder(e.store, e.provider.NodeEmbedder(), e.registry, e.config.Reembed, progress)
}

// NewEdgeReembedder recomputes relationship vectors with the current
// relationship model.
func (e *Engine) NewEdgeReembedder(progress io.Writer) (*reembed.Reembedder[*core.ContainmentEdge], error) {
	return reembed.NewEdgeReembedder(e.store, e.provider.RelationshipEmbedder(), e.config.Reembed, progress)
}

// Bootstrap clusters every embedded leaf node into domains, names them,
// links neighbors and replaces the registered domains with the result.
// Leaves without a vector are left unassigned.
func (e *Engine) Bootstrap(ctx context.Context) ([]*core.Domain, error) {
	leaves, err := e.store.ListNodes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	byID := make(map[core.NodeID]*core.Node, len(leaves))
	vectors := make(map[core.NodeID][]float32, len(leaves))
	for _, n := range leaves {
		byID[n.ID] = n
		if len(n.Vector) > 0 {
			vectors[n.ID] = n.Vector
		}
	}
	if skipped := len(leaves) - len(vectors); skipped > 0 {
		e.logger.Warn("leaves without embeddings left out of clustering", "count", skipped)
	}

	clusterer, err := cluster.NewClusterer(
		cluster.WithConfig(e.config.Cluster),
		cluster.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	domains, err := clusterer.Cluster(ctx, vectors)
	if err != nil {
		return nil, err
	}

	for _, d := range domains {
		d.Name = e.label(ctx, d, byID)
	}
	cluster.LinkNeighbors(domains, e.config.Registry.NeighborCount)

	if err := e.registry.Replace(ctx, domains...); err != nil {
		return nil, err
	}
	e.logger.Info("bootstrap complete", "domains", len(domains), "leaves", len(vectors))
	return domains, nil
}

// label names a domain from its first members. A labeler failure falls back
// to the first member's title or path.
func (e *Engine) label(ctx context.Context, d *core.Domain, nodes map[core.NodeID]*core.Node) string {
	samples := make([]string, 0, labelSamples)
	for _, id := range d.Members[:min(labelSamples, len(d.Members))] {
		samples = append(samples, nodes[id].Content)
	}

	name, err := e.provider.DomainLabeler().LabelDomain(ctx, samples)
	if err == nil && name != "" {
		return name
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("domain labeling failed, using member title", "domain", d.ID, "err", err)
	}

	first := nodes[d.Members[0]]
	if first.Title != "" {
		return first.Title
	}
	return first.Path
}
