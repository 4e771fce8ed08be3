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

package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/registry"
	"github.com/poiesic/lexis/search"
	"github.com/poiesic/lexis/storage"
)

var tracer = otel.Tracer("github.com/poiesic/lexis/manager")

var (
	// ErrRegistryRequired is returned when a registry is not provided.
	ErrRegistryRequired = errors.New("registry required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Request is a search request.
type Request struct {
	Query string `json:"query"`
	// Limit caps the number of results. Zero means the configured default.
	Limit int `json:"limit,omitempty"`
	// DomainID bypasses routing and searches this domain.
	DomainID core.DomainID `json:"domain_id,omitempty"`
}

// SkippedNeighbor is a neighbor domain that could not answer.
type SkippedNeighbor struct {
	DomainID core.DomainID `json:"domain_id"`
	Reason   string        `json:"reason"`
}

// Stats describes how a search was answered.
type Stats struct {
	PrimaryDomain core.DomainID `json:"primary_domain"`
	// Routed is set when the primary domain was chosen by centroid similarity.
	Routed           bool                  `json:"routed"`
	RouteSimilarity  float32               `json:"route_similarity,omitempty"`
	Confidence       float32               `json:"confidence"`
	Collaborated     bool                  `json:"collaborated"`
	NeighborsQueried []core.DomainID       `json:"neighbors_queried,omitempty"`
	NeighborsSkipped []SkippedNeighbor     `json:"neighbors_skipped,omitempty"`
	SkippedStages    []search.SkippedStage `json:"skipped_stages,omitempty"`
	Candidates       map[core.Stage]int    `json:"candidates"`
	Partial          bool                  `json:"partial"`
}

// Response is the answer to a Request.
type Response struct {
	RequestID      string              `json:"request_id"`
	Results        []core.SearchResult `json:"results"`
	Stats          Stats               `json:"stats"`
	DomainID       core.DomainID       `json:"domain_id"`
	DomainName     string              `json:"domain_name"`
	ResponseTimeMS int64               `json:"response_time_ms"`
}

// Manager routes queries to domain agents and coordinates collaboration
// between neighboring domains. It is safe for concurrent use; create one
// per process.
type Manager struct {
	registry *registry.Registry
	store    storage.GraphStore
	nodes    ai.Embedder
	edges    ai.Embedder
	pool     *ants.Pool
	config   Config
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithConfig sets the routing and collaboration tuning.
// Default is DefaultConfig().
func WithConfig(config Config) Option {
	return func(m *Manager) error {
		if err := config.Validate(); err != nil {
			return err
		}
		m.config = config
		return nil
	}
}

// New creates a manager over a registry.
func New(reg *registry.Registry, store storage.GraphStore, provider ai.AIProvider, opts ...Option) (*Manager, error) {
	if reg == nil {
		return nil, ErrRegistryRequired
	}
	if store == nil {
		return nil, ErrGraphStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	m := &Manager{
		registry: reg,
		store:    store,
		nodes:    provider.NodeEmbedder(),
		edges:    provider.RelationshipEmbedder(),
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "agent-manager")

	pool, err := ants.NewPool(m.config.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create collaboration pool: %w", err)
	}
	m.pool = pool

	return m, nil
}

// Release releases the collaboration pool.
// The manager should not be used after calling Release.
func (m *Manager) Release() {
	if m.pool != nil {
		m.pool.Release()
	}
}

// Route returns the domain a query would be sent to.
func (m *Manager) Route(ctx context.Context, text string) (*core.Domain, float32, error) {
	if m.registry.Len() == 0 {
		return nil, 0, core.ErrNoDomainsAvailable
	}
	vector, err := m.nodes.EmbedText(ctx, text)
	if err != nil {
		if !errors.Is(err, core.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
		}
		return nil, 0, err
	}
	return m.registry.Route(vector)
}

// requestSink stamps events with the request id.
type requestSink struct {
	id   string
	sink search.Sink
}

func (s requestSink) Emit(e search.Event) {
	e.RequestID = s.id
	s.sink.Emit(e)
}

// Search answers a request. Progress events are pushed to sink, which may
// be nil.
func (m *Manager) Search(ctx context.Context, req Request, sink search.Sink) (*Response, error) {
	if sink == nil {
		sink = search.SinkFunc(func(search.Event) {})
	}
	start := time.Now()
	requestID := uuid.NewString()
	events := requestSink{id: requestID, sink: sink}
	logger := m.logger.With("request", requestID)

	ctx, span := tracer.Start(ctx, "AgentManager.Search", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.domain_id", string(req.DomainID)),
	))
	defer span.End()

	events.Emit(search.Event{Type: search.EventStarted, Query: req.Query})

	resp, err := m.search(ctx, req, events, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("search failed", "err", err)
		events.Emit(search.Event{Type: search.EventError, Message: err.Error()})
		return nil, err
	}

	resp.RequestID = requestID
	resp.ResponseTimeMS = time.Since(start).Milliseconds()
	span.SetAttributes(
		attribute.String("domain.id", string(resp.DomainID)),
		attribute.Int("results", len(resp.Results)),
		attribute.Bool("collaborated", resp.Stats.Collaborated),
	)
	events.Emit(search.Event{
		Type:           search.EventComplete,
		Results:        resp.Results,
		ResultCount:    len(resp.Results),
		ResponseTimeMS: resp.ResponseTimeMS,
		DomainID:       resp.DomainID,
		DomainName:     resp.DomainName,
	})
	logger.Debug("search complete", "domain", resp.DomainID, "results", len(resp.Results),
		"confidence", resp.Stats.Confidence, "collaborated", resp.Stats.Collaborated)
	return resp, nil
}

func (m *Manager) search(ctx context.Context, req Request, events search.Sink, logger *slog.Logger) (*Response, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = m.config.DefaultLimit
	}
	limit = min(limit, m.config.MaxLimit)

	if m.registry.Len() == 0 {
		return nil, core.ErrNoDomainsAvailable
	}

	// Look up a requested domain before paying for embeddings.
	var primary *core.Domain
	if req.DomainID != "" {
		d, err := m.registry.Get(req.DomainID)
		if err != nil {
			return nil, err
		}
		primary = d
	}

	query, err := search.EmbedQuery(ctx, m.nodes, m.edges, text)
	if err != nil {
		return nil, err
	}

	stats := Stats{}
	if primary == nil {
		d, similarity, err := m.registry.Route(query.NodeVector)
		if err != nil {
			return nil, err
		}
		primary = d
		stats.Routed = true
		stats.RouteSimilarity = similarity
	}
	stats.PrimaryDomain = primary.ID

	agent, err := m.registry.Agent(primary.ID)
	if err != nil {
		return nil, err
	}
	outcome, err := agent.Search(ctx, query, events)
	if err != nil {
		return nil, err
	}
	stats.SkippedStages = outcome.Stats.Skipped
	stats.Candidates = outcome.Stats.Candidates
	stats.Partial = outcome.Stats.Partial
	stats.Confidence = Confidence(outcome.Results, m.config.ConfidenceTopK)

	results := outcome.Results
	if stats.Confidence < m.config.CollaborationThreshold && len(primary.Neighbors) > 0 && !stats.Partial && ctx.Err() == nil {
		logger.Debug("low confidence, consulting neighbors",
			"confidence", stats.Confidence, "neighbors", primary.Neighbors)
		events.Emit(search.Event{
			Type:      search.EventSearching,
			Stage:     6,
			StageName: search.StageNameCollaboration,
			Progress:  1,
			Agent:     primary.Name,
			DomainID:  primary.ID,
		})
		neighborResults := m.collaborate(ctx, primary.Neighbors, query, &stats, logger)
		results = Merge(results, neighborResults...)
		stats.Collaborated = true
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return &Response{
		Results:    results,
		Stats:      stats,
		DomainID:   primary.ID,
		DomainName: primary.Name,
	}, nil
}

// collaborate asks each neighbor agent concurrently and tags what they find
// with their origin. Neighbors that fail are recorded and skipped.
func (m *Manager) collaborate(ctx context.Context, neighbors []core.DomainID, query *core.Query, stats *Stats, logger *slog.Logger) [][]core.SearchResult {
	ctx, span := tracer.Start(ctx, "AgentManager.collaborate", trace.WithAttributes(
		attribute.Int("neighbors", len(neighbors)),
	))
	defer span.End()

	results := make([][]core.SearchResult, len(neighbors))
	failures := make([]error, len(neighbors))

	var wg sync.WaitGroup
	for i, id := range neighbors {
		agent, err := m.registry.Agent(id)
		if err != nil {
			failures[i] = err
			continue
		}
		wg.Add(1)
		err = m.pool.Submit(func() {
			defer wg.Done()
			outcome, err := agent.RespondToPeer(ctx, query)
			if err != nil {
				failures[i] = err
				return
			}
			origin := core.NeighborOrigin(id)
			tagged := make([]core.SearchResult, len(outcome.Results))
			for j, r := range outcome.Results {
				r.Origin = origin
				tagged[j] = r
			}
			results[i] = tagged
		})
		if err != nil {
			wg.Done()
			failures[i] = err
		}
	}
	wg.Wait()

	for i, id := range neighbors {
		if failures[i] != nil {
			logger.Warn("neighbor domain skipped", "domain", id, "err", failures[i])
			stats.NeighborsSkipped = append(stats.NeighborsSkipped, SkippedNeighbor{DomainID: id, Reason: failures[i].Error()})
			continue
		}
		stats.NeighborsQueried = append(stats.NeighborsQueried, id)
	}
	return results
}

// Confidence is the mean score of the top k results, or 0 without results.
// Results must be sorted by score.
func Confidence(results []core.SearchResult, k int) float32 {
	n := min(k, len(results))
	if n == 0 {
		return 0
	}
	var sum float32
	for _, r := range results[:n] {
		sum += r.Score
	}
	return sum / float32(n)
}

// Merge combines primary results with neighbor results. A node found more
// than once keeps the score and origin of its highest scoring entry, the
// primary entry on a tie, and the union of every entry's stages.
// The merged list is sorted by score, ties by node id.
func Merge(primary []core.SearchResult, others ...[]core.SearchResult) []core.SearchResult {
	best := make(map[core.NodeID]int, len(primary))
	merged := make([]core.SearchResult, 0, len(primary))
	add := func(r core.SearchResult) {
		i, ok := best[r.NodeID]
		if !ok {
			r.Stages = slices.Clone(r.Stages)
			best[r.NodeID] = len(merged)
			merged = append(merged, r)
			return
		}
		stages := append(merged[i].Stages, r.Stages...)
		core.SortStages(stages)
		stages = slices.Compact(stages)
		if r.Score > merged[i].Score {
			merged[i] = r
		}
		merged[i].Stages = stages
	}
	for _, r := range primary {
		add(r)
	}
	for _, list := range others {
		for _, r := range list {
			add(r)
		}
	}
	search.SortResults(merged)
	return merged
}
