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

package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/cluster"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/search"
	"github.com/poiesic/lexis/storage"
)

// assignAttempts bounds how often AssignNode routes again after its
// target domain disappeared under it.
const assignAttempts = 3

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNotAssignable is returned when a node cannot join a domain.
	ErrNotAssignable = errors.New("node cannot be assigned to a domain")
)

// Config tunes domain maintenance.
type Config struct {
	// NeighborCount is the number of neighbor domains linked to each domain. Default: 3
	NeighborCount int `yaml:"neighbor_count"`
	// NewDomainFloor starts a new domain for a node whose best centroid
	// similarity is below it. Zero disables new domain creation. Default: 0
	NewDomainFloor float32 `yaml:"new_domain_floor"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{NeighborCount: 3}
}

// Validate checks the tuning.
func (c Config) Validate() error {
	if c.NeighborCount < 0 {
		return errors.New("registry config: NeighborCount must not be negative")
	}
	if c.NewDomainFloor < 0 || c.NewDomainFloor > 1 {
		return errors.New("registry config: NewDomainFloor must be in [0, 1]")
	}
	return nil
}

// entry is one registered domain. Readers load the snapshot without
// locking; writers hold mu, build a new snapshot and swap it in.
type entry struct {
	mu     sync.Mutex
	domain atomic.Pointer[core.Domain]
	agent  *search.Agent
}

// Registry is the process-wide set of domains and their agents.
//
// Domain snapshots returned by the registry are shared and must not be
// modified. Updates replace snapshots instead of changing them, so a search
// always sees a consistent domain.
type Registry struct {
	store     storage.Store
	provider  ai.AIProvider
	config    Config
	agentOpts []search.Option
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[core.DomainID]*entry
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithConfig sets the maintenance tuning.
// Default is DefaultConfig().
func WithConfig(config Config) Option {
	return func(r *Registry) error {
		if err := config.Validate(); err != nil {
			return err
		}
		r.config = config
		return nil
	}
}

// WithAgentOptions sets the options every domain agent is created with.
func WithAgentOptions(opts ...search.Option) Option {
	return func(r *Registry) error {
		r.agentOpts = append(r.agentOpts, opts...)
		return nil
	}
}

// New creates an empty registry. Call Load to read persisted domains.
func New(store storage.Store, provider ai.AIProvider, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Registry{
		store:    store,
		provider: provider,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		entries:  make(map[core.DomainID]*entry),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "registry")

	return r, nil
}

func (r *Registry) newEntry(domain *core.Domain) (*entry, error) {
	e := &entry{}
	e.domain.Store(domain)
	agent, err := search.NewAgent(e.domain.Load, r.store, r.provider, r.agentOpts...)
	if err != nil {
		return nil, err
	}
	e.agent = agent
	return e, nil
}

// Load replaces the registered domains with the persisted ones.
func (r *Registry) Load(ctx context.Context) error {
	domains, err := r.store.LoadDomains(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	entries := make(map[core.DomainID]*entry, len(domains))
	for _, d := range domains {
		e, err := r.newEntry(d)
		if err != nil {
			return err
		}
		entries[d.ID] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	r.logger.Info("domains loaded", "count", len(domains))
	return nil
}

// Replace swaps every registered domain for domains, as after a fresh
// clustering. Nodes owned by a replaced domain and absent from the new ones
// lose their domain. Replace must not run concurrently with other writers.
func (r *Registry) Replace(ctx context.Context, domains ...*core.Domain) error {
	members := make(map[core.NodeID]struct{})
	for _, d := range domains {
		if err := core.ValidateDomain(d, 0); err != nil {
			return err
		}
		for _, m := range d.Members {
			members[m] = struct{}{}
		}
	}

	old := r.List()
	stale := make([]core.DomainID, 0, len(old))
	var orphaned []core.NodeID
	for _, d := range old {
		stale = append(stale, d.ID)
		for _, m := range d.Members {
			if _, ok := members[m]; !ok {
				orphaned = append(orphaned, m)
			}
		}
	}
	if err := r.store.DeleteDomains(ctx, stale...); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	if len(orphaned) > 0 {
		if err := r.store.SetNodeDomain(ctx, "", orphaned...); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
		}
	}

	r.mu.Lock()
	r.entries = make(map[core.DomainID]*entry, len(domains))
	r.mu.Unlock()
	if err := r.Add(ctx, domains...); err != nil {
		return err
	}
	r.logger.Info("domains replaced", "removed", len(stale), "added", len(domains), "orphaned", len(orphaned))
	return nil
}

// Add persists and registers domains, replacing any with the same id, and
// records each member's owning domain.
func (r *Registry) Add(ctx context.Context, domains ...*core.Domain) error {
	for _, d := range domains {
		if err := core.ValidateDomain(d, 0); err != nil {
			return err
		}
	}
	if err := r.store.SaveDomains(ctx, domains...); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	for _, d := range domains {
		if err := r.store.SetNodeDomain(ctx, d.ID, d.Members...); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range domains {
		e, err := r.newEntry(d)
		if err != nil {
			return err
		}
		r.entries[d.ID] = e
	}
	return nil
}

func (r *Registry) entry(id core.DomainID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrDomainNotFound, id)
	}
	return e, nil
}

// Get returns the current snapshot of a domain.
func (r *Registry) Get(id core.DomainID) (*core.Domain, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.domain.Load(), nil
}

// Agent returns the agent serving a domain.
func (r *Registry) Agent(id core.DomainID) (search.DomainAgent, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.agent, nil
}

// List returns the current snapshot of every domain ordered by id.
func (r *Registry) List() []*core.Domain {
	r.mu.RLock()
	domains := make([]*core.Domain, 0, len(r.entries))
	for _, e := range r.entries {
		domains = append(domains, e.domain.Load())
	}
	r.mu.RUnlock()

	slices.SortFunc(domains, func(a, b *core.Domain) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return domains
}

// Len returns the number of registered domains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Route returns the domain whose centroid is most similar to vector, ties
// broken toward the smaller id, with its similarity.
func (r *Registry) Route(vector []float32) (*core.Domain, float32, error) {
	domain, score := cluster.Nearest(r.List(), vector)
	if domain == nil {
		return nil, 0, core.ErrNoDomainsAvailable
	}
	return domain, score, nil
}

// registered reports whether e is still the registered entry for its
// domain. A merge or removal that ran while the caller waited for e.mu
// unregisters it.
func (r *Registry) registered(e *entry) bool {
	id := e.domain.Load().ID
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id] == e
}

// update applies change to a copy of the domain under its writer lock,
// persists the copy and publishes it. The caller holds e.mu.
func (r *Registry) update(ctx context.Context, e *entry, change func(d *core.Domain) error) error {
	if !r.registered(e) {
		return fmt.Errorf("%w: %s", core.ErrDomainNotFound, e.domain.Load().ID)
	}
	next := e.domain.Load().Clone()
	if err := change(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	if err := r.store.SaveDomains(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	e.domain.Store(next)
	return nil
}

// centroid returns the mean vector of members, or nil if none has a vector.
func (r *Registry) centroid(ctx context.Context, members []core.NodeID) ([]float32, error) {
	nodes, err := r.store.GetNodes(ctx, members...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	vectors := make([][]float32, 0, len(nodes))
	for _, n := range nodes {
		if len(n.Vector) > 0 {
			vectors = append(vectors, n.Vector)
		}
	}
	return core.Mean(vectors)
}

// recenter sets d's centroid to the mean of its members' vectors. A domain
// whose members have no vectors keeps its centroid.
func (r *Registry) recenter(ctx context.Context, d *core.Domain) error {
	centroid, err := r.centroid(ctx, d.Members)
	if err != nil {
		return err
	}
	if centroid != nil {
		d.Centroid = centroid
	}
	return nil
}

// RecomputeCentroid recalculates a domain's centroid from its members.
func (r *Registry) RecomputeCentroid(ctx context.Context, id core.DomainID) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.update(ctx, e, func(d *core.Domain) error {
		return r.recenter(ctx, d)
	})
}

// RecomputeAll recalculates every centroid, for use after re-embedding.
func (r *Registry) RecomputeAll(ctx context.Context) error {
	for _, d := range r.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RecomputeCentroid(ctx, d.ID); err != nil {
			return err
		}
	}
	return nil
}

// AssignNode routes a leaf node to the domain with the nearest centroid,
// moving it out of its previous domain, and recomputes the centroids of
// both. With a NewDomainFloor configured, a node no domain is similar
// enough to starts a domain of its own. Returns the node's domain.
func (r *Registry) AssignNode(ctx context.Context, node *core.Node) (core.DomainID, error) {
	if !node.Leaf || len(node.Vector) == 0 {
		return "", fmt.Errorf("%w: %s must be a leaf with a vector", ErrNotAssignable, node.ID)
	}
	var err error
	for range assignAttempts {
		var id core.DomainID
		id, err = r.assign(ctx, node)
		// The routed domain was merged or removed meanwhile; route again.
		if !errors.Is(err, core.ErrDomainNotFound) {
			return id, err
		}
	}
	return "", err
}

func (r *Registry) assign(ctx context.Context, node *core.Node) (core.DomainID, error) {
	target, score, err := r.Route(node.Vector)
	if err != nil && !errors.Is(err, core.ErrNoDomainsAvailable) {
		return "", err
	}
	if target == nil || (r.config.NewDomainFloor > 0 && score < r.config.NewDomainFloor) {
		return r.startDomain(ctx, node)
	}

	previous := r.owner(node.ID)
	if previous == target.ID {
		return target.ID, nil
	}

	if previous != "" {
		if err := r.removeMember(ctx, previous, node.ID); err != nil {
			return "", err
		}
	}
	e, err := r.entry(target.ID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	err = r.update(ctx, e, func(d *core.Domain) error {
		if i, found := slices.BinarySearch(d.Members, node.ID); !found {
			d.Members = slices.Insert(d.Members, i, node.ID)
		}
		return r.recenter(ctx, d)
	})
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	if err := r.store.SetNodeDomain(ctx, target.ID, node.ID); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	r.logger.Debug("node assigned", "node", node.ID, "domain", target.ID, "similarity", score)
	return target.ID, nil
}

// owner returns the domain a node is registered in, if any.
func (r *Registry) owner(id core.NodeID) core.DomainID {
	for _, d := range r.List() {
		if d.HasMember(id) {
			return d.ID
		}
	}
	return ""
}

// removeMember drops a node from a domain. A domain left empty is removed.
func (r *Registry) removeMember(ctx context.Context, id core.DomainID, node core.NodeID) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	current := e.domain.Load()
	if current.Size() != 1 || !current.HasMember(node) {
		err := r.update(ctx, e, func(d *core.Domain) error {
			d.Members = slices.DeleteFunc(d.Members, func(m core.NodeID) bool { return m == node })
			return r.recenter(ctx, d)
		})
		e.mu.Unlock()
		return err
	}

	if !r.registered(e) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrDomainNotFound, id)
	}
	if err := r.store.DeleteDomains(ctx, id); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	e.mu.Unlock()
	r.logger.Info("empty domain removed", "domain", id)

	// Domains listing the removed one as a neighbor need new neighbors.
	return r.LinkNeighbors(ctx)
}

// startDomain registers a single-member domain for node.
func (r *Registry) startDomain(ctx context.Context, node *core.Node) (core.DomainID, error) {
	if previous := r.owner(node.ID); previous != "" {
		if err := r.removeMember(ctx, previous, node.ID); err != nil {
			return "", err
		}
	}
	members := []core.NodeID{node.ID}
	now := time.Now().UTC()
	domain := &core.Domain{
		ID:        core.DomainIDFromMembers(members),
		Name:      node.Title,
		Centroid:  slices.Clone(node.Vector),
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Add(ctx, domain); err != nil {
		return "", err
	}
	r.logger.Info("new domain started", "domain", domain.ID, "node", node.ID)
	if err := r.LinkNeighbors(ctx); err != nil {
		return "", err
	}
	return domain.ID, nil
}

// Merge combines two domains into one whose id derives from the combined
// members, keeping the first domain's name, and relinks neighbors.
func (r *Registry) Merge(ctx context.Context, a, b core.DomainID) (*core.Domain, error) {
	if a == b {
		return nil, fmt.Errorf("%w: cannot merge %s with itself", core.ErrInvalidDomain, a)
	}
	first, err := r.entry(a)
	if err != nil {
		return nil, err
	}
	second, err := r.entry(b)
	if err != nil {
		return nil, err
	}

	// Lock in id order so concurrent merges cannot deadlock.
	locked := []*entry{first, second}
	if b < a {
		locked[0], locked[1] = second, first
	}
	for _, e := range locked {
		e.mu.Lock()
		defer e.mu.Unlock()
	}

	da, db := first.domain.Load(), second.domain.Load()
	members := slices.Concat(da.Members, db.Members)
	slices.Sort(members)
	members = slices.Compact(members)

	now := time.Now().UTC()
	merged := &core.Domain{
		ID:        core.DomainIDFromMembers(members),
		Name:      da.Name,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.recenter(ctx, merged); err != nil {
		return nil, err
	}

	if err := r.store.DeleteDomains(ctx, a, b); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	if err := r.store.SaveDomains(ctx, merged); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	if err := r.store.SetNodeDomain(ctx, merged.ID, members...); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	e, err := r.newEntry(merged)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	delete(r.entries, a)
	delete(r.entries, b)
	r.entries[merged.ID] = e
	r.mu.Unlock()
	r.logger.Info("domains merged", "first", a, "second", b, "domain", merged.ID, "members", len(members))

	if err := r.LinkNeighbors(ctx); err != nil {
		return nil, err
	}
	return r.Get(merged.ID)
}

// LinkNeighbors recomputes every domain's neighbor list from the current
// centroids.
func (r *Registry) LinkNeighbors(ctx context.Context) error {
	domains := r.List()
	clones := make([]*core.Domain, len(domains))
	for i, d := range domains {
		clones[i] = d.Clone()
	}
	cluster.LinkNeighbors(clones, r.config.NeighborCount)

	for _, linked := range clones {
		e, err := r.entry(linked.ID)
		if err != nil {
			// Removed concurrently.
			continue
		}
		e.mu.Lock()
		err = r.update(ctx, e, func(d *core.Domain) error {
			d.Neighbors = linked.Neighbors
			return nil
		})
		e.mu.Unlock()
		if errors.Is(err, core.ErrDomainNotFound) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
