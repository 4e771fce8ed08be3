package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/expansion"
	"github.com/poiesic/lexis/storage"
)

var tracer = otel.Tracer("github.com/poiesic/lexis/search")

// DomainAgent searches a single domain.
type DomainAgent interface {
	// Domain returns the current snapshot of the agent's domain.
	Domain() *core.Domain

	// SearchMyDomain embeds text and runs the layered search over the
	// domain's members, reporting stage progress to sink.
	SearchMyDomain(ctx context.Context, text string, sink Sink) (*Outcome, error)

	// Search runs the layered search for an already embedded query.
	Search(ctx context.Context, query *core.Query, sink Sink) (*Outcome, error)

	// RespondToPeer answers a collaboration request from another agent. It
	// runs the same pipeline as Search without reporting progress.
	RespondToPeer(ctx context.Context, query *core.Query) (*Outcome, error)
}

// SkippedStage records a stage that failed and was left out of a search.
type SkippedStage struct {
	Stage  core.Stage `json:"stage"`
	Reason string     `json:"reason"`
}

// Stats describes how a search went.
type Stats struct {
	// Candidates counts the hits each stage produced before merging.
	Candidates map[core.Stage]int `json:"candidates"`
	// Skipped lists the stages that failed.
	Skipped []SkippedStage `json:"skipped,omitempty"`
	// Partial is set when the search was canceled before every stage ran.
	Partial bool          `json:"partial"`
	Elapsed time.Duration `json:"elapsed"`
}

// Outcome is an agent's answer.
type Outcome struct {
	DomainID core.DomainID
	Results  []core.SearchResult
	Stats    Stats
}

// Agent is the DomainAgent for one domain.
type Agent struct {
	domain func() *core.Domain
	store  storage.GraphStore
	nodes  ai.Embedder
	edges  ai.Embedder
	config Config
	logger *slog.Logger
}

var _ DomainAgent = (*Agent)(nil)

// Option configures an Agent.
type Option func(*Agent) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithConfig sets the pipeline tuning.
// Default is DefaultConfig().
func WithConfig(config Config) Option {
	return func(a *Agent) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// NewAgent creates an agent. domain is called at the start of every search
// and must return the domain's current snapshot.
func NewAgent(domain func() *core.Domain, store storage.GraphStore, provider ai.AIProvider, opts ...Option) (*Agent, error) {
	if domain == nil {
		return nil, ErrDomainRequired
	}
	if store == nil {
		return nil, ErrGraphStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	a := &Agent{
		domain: domain,
		store:  store,
		nodes:  provider.NodeEmbedder(),
		edges:  provider.RelationshipEmbedder(),
		config: DefaultConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Domain implements DomainAgent.
func (a *Agent) Domain() *core.Domain {
	return a.domain()
}

// SearchMyDomain implements DomainAgent.
func (a *Agent) SearchMyDomain(ctx context.Context, text string, sink Sink) (*Outcome, error) {
	query, err := EmbedQuery(ctx, a.nodes, a.edges, text)
	if err != nil {
		return nil, err
	}
	return a.Search(ctx, query, sink)
}

// RespondToPeer implements DomainAgent.
func (a *Agent) RespondToPeer(ctx context.Context, query *core.Query) (*Outcome, error) {
	return a.Search(ctx, query, nil)
}

// Search implements DomainAgent.
func (a *Agent) Search(ctx context.Context, query *core.Query, sink Sink) (*Outcome, error) {
	if sink == nil {
		sink = noopSink{}
	}
	domain := a.domain()
	if domain == nil {
		return nil, ErrDomainRequired
	}

	ctx, span := tracer.Start(ctx, "DomainAgent.Search", trace.WithAttributes(
		attribute.String("domain.id", string(domain.ID)),
		attribute.Int("domain.size", domain.Size()),
	))
	defer span.End()

	run := &pipeline{
		agent:  a,
		domain: domain,
		query:  query,
		sink:   sink,
		logger: a.logger.With("component", "domain-agent", "domain", domain.ID),
		merged: make(map[core.NodeID]*candidate),
		stats:  Stats{Candidates: make(map[core.Stage]int)},
		start:  time.Now(),
	}
	outcome, err := run.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("results", len(outcome.Results)),
		attribute.Bool("partial", outcome.Stats.Partial),
	)
	return outcome, nil
}

// EmbedQuery computes both query embeddings concurrently.
func EmbedQuery(ctx context.Context, nodes, edges ai.Embedder, text string) (*core.Query, error) {
	query := &core.Query{Text: text}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := nodes.EmbedText(gctx, text)
		query.NodeVector = v
		return err
	})
	g.Go(func() error {
		v, err := edges.EmbedText(gctx, text)
		query.RelationshipVector = v
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, core.ErrEmbeddingUnavailable) || isCanceled(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	return query, nil
}

// candidate is a node accumulated by the merge step.
type candidate struct {
	score  float32
	stages map[core.Stage]struct{}
}

// pipeline is the state of one search.
type pipeline struct {
	agent  *Agent
	domain *core.Domain
	query  *core.Query
	sink   Sink
	logger *slog.Logger

	members storage.NodeSet
	nodes   map[core.NodeID]*core.Node
	merged  map[core.NodeID]*candidate
	// seeds holds the best vector or relationship score per node.
	seeds map[core.NodeID]float32
	stats Stats
	start time.Time
}

// add merges a stage hit: a node keeps its highest score and every stage
// that found it. Hits without any similarity are dropped.
func (p *pipeline) add(id core.NodeID, score float32, stage core.Stage) {
	if score <= 0 {
		return
	}
	c, ok := p.merged[id]
	if !ok {
		c = &candidate{score: score, stages: make(map[core.Stage]struct{}, 1)}
		p.merged[id] = c
	}
	c.score = max(c.score, score)
	c.stages[stage] = struct{}{}
}

func (p *pipeline) emit(stage int, name string) {
	p.sink.Emit(Event{
		Type:      EventSearching,
		Stage:     stage,
		StageName: name,
		Progress:  float64(stage) / stageCount,
		Agent:     p.agentName(),
		DomainID:  p.domain.ID,
	})
}

func (p *pipeline) agentName() string {
	if p.domain.Name != "" {
		return p.domain.Name
	}
	return string(p.domain.ID)
}

func (p *pipeline) skip(stage core.Stage, err error) {
	p.logger.Warn("search stage skipped", "stage", stage, "err", err)
	p.stats.Skipped = append(p.stats.Skipped, SkippedStage{Stage: stage, Reason: err.Error()})
}

func (p *pipeline) execute(ctx context.Context) (*Outcome, error) {
	p.members = storage.NewNodeSet(p.domain.Members...)

	if err := p.exact(ctx); err != nil {
		return p.interrupted(err)
	}
	p.emit(1, StageNameExact)
	if ctx.Err() != nil {
		return p.interrupted(ctx.Err())
	}

	if err := p.similarity(ctx); err != nil {
		return p.interrupted(err)
	}
	p.emit(2, StageNameVector)
	p.emit(3, StageNameRelationship)
	if ctx.Err() != nil {
		return p.interrupted(ctx.Err())
	}

	if err := p.expand(ctx); err != nil {
		return p.interrupted(err)
	}
	p.emit(4, StageNameGraphExpansion)
	if ctx.Err() != nil {
		return p.interrupted(ctx.Err())
	}

	outcome := p.rerank()
	p.emit(5, StageNameRerank)
	return outcome, nil
}

// interrupted turns a cancellation into a partial outcome when anything
// has been merged already. Other errors are returned unchanged.
func (p *pipeline) interrupted(err error) (*Outcome, error) {
	if !isCanceled(err) || len(p.merged) == 0 {
		return nil, err
	}
	p.logger.Debug("search canceled, returning partial results", "merged", len(p.merged))
	outcome := p.rerank()
	outcome.Stats.Partial = true
	return outcome, nil
}

// exact loads the domain's members and matches their path and title
// against the query. The member fetch is the one read a search cannot do
// without.
func (p *pipeline) exact(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stage.exact")
	defer span.End()

	nodes, err := p.agent.store.GetNodes(ctx, p.domain.Members...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isCanceled(err) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	matcher := newExactMatcher(p.query.Text)
	p.nodes = make(map[core.NodeID]*core.Node, len(nodes))
	hits := 0
	for _, node := range nodes {
		p.nodes[node.ID] = node
		if matcher.match(node) {
			p.add(node.ID, 1, core.StageExact)
			hits++
		}
	}
	p.stats.Candidates[core.StageExact] = hits
	span.SetAttributes(attribute.Int("hits", hits))
	return nil
}

// similarity runs the vector and relationship searches concurrently. A
// failing vector search fails the whole search; a failing relationship
// search is skipped.
func (p *pipeline) similarity(ctx context.Context) error {
	var (
		vectorHits []core.ScoredNode
		edgeHits   []core.ScoredEdge
		edgeErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, span := tracer.Start(gctx, "stage.vector")
		defer span.End()
		hits, err := p.agent.store.VectorSearchNodes(sctx, p.query.NodeVector, p.agent.config.VectorTopN, p.members)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if isCanceled(err) {
				return err
			}
			return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		sctx, span := tracer.Start(gctx, "stage.relationship")
		defer span.End()
		hits, err := p.agent.store.VectorSearchEdges(sctx, p.query.RelationshipVector, p.agent.config.RelationshipTopN, p.members)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			edgeErr = err
			return nil
		}
		edgeHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.seeds = make(map[core.NodeID]float32)
	seed := func(id core.NodeID, score float32) {
		if best, ok := p.seeds[id]; !ok || score > best {
			p.seeds[id] = score
		}
	}

	for _, hit := range vectorHits {
		score := core.Clamp01(hit.Score)
		p.add(hit.NodeID, score, core.StageVector)
		seed(hit.NodeID, score)
	}
	p.stats.Candidates[core.StageVector] = len(vectorHits)

	if edgeErr != nil {
		if isCanceled(edgeErr) {
			return edgeErr
		}
		p.skip(core.StageRelationship, edgeErr)
		return nil
	}
	endpoints := 0
	for _, hit := range edgeHits {
		score := core.Clamp01(hit.Score)
		for _, id := range []core.NodeID{hit.Source, hit.Target} {
			if !p.members.Contains(id) {
				continue
			}
			p.add(id, score, core.StageRelationship)
			seed(id, score)
			endpoints++
		}
	}
	p.stats.Candidates[core.StageRelationship] = endpoints
	return nil
}

// expand grows the vector and relationship candidates that clear the RNE
// threshold with both RNE and INE. A reached node scores no more than the
// seed it was reached from. Only member nodes that were not seeds are
// contributed. A failing expansion is skipped.
func (p *pipeline) expand(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "stage.graph_expansion")
	defer span.End()

	threshold := p.agent.config.RNE.Threshold
	var seeds []core.ScoredNode
	for id, score := range p.seeds {
		if score >= threshold {
			seeds = append(seeds, core.ScoredNode{NodeID: id, Score: score})
		}
	}
	slices.SortFunc(seeds, func(a, b core.ScoredNode) int {
		return cmp.Compare(a.NodeID, b.NodeID)
	})
	span.SetAttributes(attribute.Int("seeds", len(seeds)))
	if len(seeds) == 0 {
		p.stats.Candidates[core.StageGraphExpansion] = 0
		return nil
	}
	seedIDs := make([]core.NodeID, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = s.NodeID
	}

	graph := expansion.NewStoreGraph(p.agent.store)
	known := make(map[core.NodeID][]float32, len(p.nodes))
	for id, node := range p.nodes {
		known[id] = node.Vector
	}
	graph.Seed(known)

	var ranged, iterative []expansion.Visit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		visits, err := expansion.RNE(gctx, graph, seeds, p.agent.config.RNE)
		ranged = visits
		return err
	})
	g.Go(func() error {
		visits, err := expansion.INE(gctx, graph, seedIDs, p.query.NodeVector, p.agent.config.INE)
		iterative = visits
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isCanceled(err) {
			return err
		}
		p.skip(core.StageGraphExpansion, err)
		return nil
	}

	contributed := 0
	for _, visit := range slices.Concat(ranged, iterative) {
		if score, ok := p.seeds[visit.NodeID]; ok && score >= threshold {
			continue
		}
		if !p.members.Contains(visit.NodeID) {
			continue
		}
		score := min(visit.Score, p.seeds[visit.Seed])
		p.add(visit.NodeID, score, core.StageGraphExpansion)
		contributed++
	}
	p.stats.Candidates[core.StageGraphExpansion] = contributed
	return nil
}

// rerank orders the merged candidates by score, ties by node id.
func (p *pipeline) rerank() *Outcome {
	results := make([]core.SearchResult, 0, len(p.merged))
	for id, c := range p.merged {
		stages := make([]core.Stage, 0, len(c.stages))
		for s := range c.stages {
			stages = append(stages, s)
		}
		core.SortStages(stages)

		result := core.SearchResult{
			NodeID: id,
			Score:  c.score,
			Stages: stages,
			Origin: core.OriginMyDomain,
		}
		if node, ok := p.nodes[id]; ok {
			result.Path = node.Path
			result.Snippet = snippet(node.Content, p.agent.config.SnippetLength)
		}
		results = append(results, result)
	}
	SortResults(results)

	p.stats.Elapsed = time.Since(p.start)
	return &Outcome{DomainID: p.domain.ID, Results: results, Stats: p.stats}
}

// SortResults orders results by score descending, ties by node id.
func SortResults(results []core.SearchResult) {
	slices.SortFunc(results, func(a, b core.SearchResult) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.NodeID, b.NodeID))
	})
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
