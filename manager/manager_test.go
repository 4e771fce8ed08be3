package manager

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexis/ai/mock"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/registry"
	"github.com/poiesic/lexis/search"
	"github.com/poiesic/lexis/storage/badger"
)

var sqrt84 = float32(math.Sqrt(0.84))

// fixture holds a store with three domains: a weak primary and two
// neighbors that match the "collaborate" query well.
type fixture struct {
	store    *badger.GraphStore
	provider *mock.MockProvider
	registry *registry.Registry
	manager  *Manager
}

func newFixture(t *testing.T, withDomains bool) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.PutNodes(ctx,
		&core.Node{ID: "p1", Title: "제1조 정의", Content: "primary one", Vector: []float32{0.4, sqrt84, 0}, Leaf: true},
		&core.Node{ID: "p2", Title: "제2조 범위", Content: "primary two", Vector: []float32{0.4, 0, sqrt84}, Leaf: true},
		&core.Node{ID: "n1", Title: "제3조 허가", Content: "neighbor one", Vector: []float32{1, 0, 0}, Leaf: true},
		&core.Node{ID: "n2", Title: "제4조 신고", Content: "neighbor two", Vector: []float32{0.9, float32(math.Sqrt(0.19)), 0}, Leaf: true},
	))

	provider := mock.NewMockProviderWithServices(
		mock.NewFixedEmbedder(3, map[string][]float32{
			"collaborate": {1, 0, 0},
			"primary":     {0.4, 0.65, 0.65},
		}),
		mock.NewFixedEmbedder(3, nil),
		nil,
	)
	reg, err := registry.New(store, provider)
	require.NoError(t, err)
	if withDomains {
		require.NoError(t, reg.Add(ctx,
			&core.Domain{ID: "dom_p", Name: "primary", Centroid: []float32{0.4, 0.46, 0.46}, Members: []core.NodeID{"p1", "p2"}, Neighbors: []core.DomainID{"dom_n1", "dom_n2"}},
			&core.Domain{ID: "dom_n1", Name: "neighbor one", Centroid: []float32{1, 0, 0}, Members: []core.NodeID{"n1"}, Neighbors: []core.DomainID{"dom_n2"}},
			&core.Domain{ID: "dom_n2", Name: "neighbor two", Centroid: []float32{0.9, 0.44, 0}, Members: []core.NodeID{"n2"}, Neighbors: []core.DomainID{"dom_n1"}},
		))
	}

	m, err := New(reg, store, provider)
	require.NoError(t, err)
	t.Cleanup(m.Release)
	return &fixture{store: store, provider: provider, registry: reg, manager: m}
}

func TestNewRequiresDependencies(t *testing.T) {
	f := newFixture(t, false)
	_, err := New(nil, f.store, f.provider)
	assert.ErrorIs(t, err, ErrRegistryRequired)
	_, err = New(f.registry, nil, f.provider)
	assert.ErrorIs(t, err, ErrGraphStoreRequired)
	_, err = New(f.registry, f.store, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
	_, err = New(f.registry, f.store, f.provider, WithConfig(Config{}))
	assert.Error(t, err)
}

func TestRouteToNearestCentroid(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.PutNodes(ctx,
		&core.Node{ID: "x", Content: "x", Vector: []float32{1, 0}, Leaf: true},
		&core.Node{ID: "y", Content: "y", Vector: []float32{0, 1}, Leaf: true},
	))
	provider := mock.NewMockProviderWithServices(
		mock.NewFixedEmbedder(2, map[string][]float32{"route me": {0.9, 0.1}}), nil, nil)
	reg, err := registry.New(store, provider)
	require.NoError(t, err)
	require.NoError(t, reg.Add(ctx,
		&core.Domain{ID: "dom_1", Centroid: []float32{1, 0}, Members: []core.NodeID{"x"}},
		&core.Domain{ID: "dom_2", Centroid: []float32{0, 1}, Members: []core.NodeID{"y"}},
	))
	m, err := New(reg, store, provider)
	require.NoError(t, err)
	defer m.Release()

	for i := 0; i < 3; i++ {
		d, _, err := m.Route(ctx, "route me")
		require.NoError(t, err)
		assert.Equal(t, core.DomainID("dom_1"), d.ID)
	}
}

func TestSearchCollaboratesWithNeighbors(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.manager.Search(context.Background(), Request{Query: "collaborate", DomainID: "dom_p"}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.4, resp.Stats.Confidence, 1e-5)
	assert.True(t, resp.Stats.Collaborated)
	assert.False(t, resp.Stats.Routed)
	assert.Equal(t, []core.DomainID{"dom_n1", "dom_n2"}, resp.Stats.NeighborsQueried)
	assert.Empty(t, resp.Stats.NeighborsSkipped)

	origins := make(map[core.NodeID]string)
	for _, r := range resp.Results {
		_, dup := origins[r.NodeID]
		assert.False(t, dup, "%s appears twice", r.NodeID)
		origins[r.NodeID] = r.Origin
	}
	assert.Equal(t, map[core.NodeID]string{
		"n1": "neighbor:dom_n1",
		"n2": "neighbor:dom_n2",
		"p1": core.OriginMyDomain,
		"p2": core.OriginMyDomain,
	}, origins)

	require.Len(t, resp.Results, 4)
	assert.Equal(t, core.NodeID("n1"), resp.Results[0].NodeID)
	assert.Equal(t, core.NodeID("n2"), resp.Results[1].NodeID)
	assert.Equal(t, core.DomainID("dom_p"), resp.DomainID)
	assert.Equal(t, "primary", resp.DomainName)
	assert.NotEmpty(t, resp.RequestID)
}

func TestSearchWithoutCollaboration(t *testing.T) {
	f := newFixture(t, true)

	resp, err := f.manager.Search(context.Background(), Request{Query: "primary", DomainID: "dom_p"}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Stats.Collaborated)
	assert.GreaterOrEqual(t, resp.Stats.Confidence, float32(0.6))
	for _, r := range resp.Results {
		assert.Equal(t, core.OriginMyDomain, r.Origin)
	}
}

func TestSearchSkipsUnavailableNeighbor(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.registry.Add(ctx, &core.Domain{
		ID: "dom_p", Name: "primary", Centroid: []float32{0.4, 0.46, 0.46},
		Members: []core.NodeID{"p1", "p2"}, Neighbors: []core.DomainID{"dom_gone", "dom_n1"},
	}))

	resp, err := f.manager.Search(ctx, Request{Query: "collaborate", DomainID: "dom_p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []core.DomainID{"dom_n1"}, resp.Stats.NeighborsQueried)
	require.Len(t, resp.Stats.NeighborsSkipped, 1)
	assert.Equal(t, core.DomainID("dom_gone"), resp.Stats.NeighborsSkipped[0].DomainID)
}

func TestSearchRespectsLimit(t *testing.T) {
	f := newFixture(t, true)
	resp, err := f.manager.Search(context.Background(), Request{Query: "collaborate", DomainID: "dom_p", Limit: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestSearchEmptyRegistry(t *testing.T) {
	f := newFixture(t, false)
	recorder := &search.Recorder{}

	resp, err := f.manager.Search(context.Background(), Request{Query: "collaborate"}, recorder)
	assert.ErrorIs(t, err, core.ErrNoDomainsAvailable)
	assert.Nil(t, resp)

	events := recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, search.EventStarted, events[0].Type)
	assert.Equal(t, search.EventError, events[1].Type)
	assert.Equal(t, events[0].RequestID, events[1].RequestID)
	assert.Zero(t, f.provider.GetMockNodeEmbedder().CallCount(), "no embedding before failing")
}

func TestSearchErrors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.manager.Search(ctx, Request{Query: "   "}, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = f.manager.Search(ctx, Request{Query: "collaborate", DomainID: "dom_missing"}, nil)
	assert.ErrorIs(t, err, core.ErrDomainNotFound)

	f.provider.GetMockNodeEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}
	_, err = f.manager.Search(ctx, Request{Query: "collaborate"}, nil)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestSearchEvents(t *testing.T) {
	f := newFixture(t, true)
	recorder := &search.Recorder{}

	resp, err := f.manager.Search(context.Background(), Request{Query: "collaborate", DomainID: "dom_p"}, recorder)
	require.NoError(t, err)

	events := recorder.Events()
	var types []search.EventType
	var stages []string
	for _, e := range events {
		assert.Equal(t, resp.RequestID, e.RequestID)
		types = append(types, e.Type)
		if e.Type == search.EventSearching {
			stages = append(stages, e.StageName)
		}
	}
	assert.Equal(t, search.EventStarted, types[0])
	assert.Equal(t, search.EventComplete, types[len(types)-1])
	assert.Equal(t, []string{
		search.StageNameExact,
		search.StageNameVector,
		search.StageNameRelationship,
		search.StageNameGraphExpansion,
		search.StageNameRerank,
		search.StageNameCollaboration,
	}, stages)

	complete := events[len(events)-1]
	assert.Equal(t, len(resp.Results), complete.ResultCount)
	assert.Equal(t, "primary", complete.DomainName)
}

func TestSearchIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.manager.Search(ctx, Request{Query: "collaborate"}, nil)
	require.NoError(t, err)
	second, err := f.manager.Search(ctx, Request{Query: "collaborate"}, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Results, second.Results); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestMergeDeduplicates(t *testing.T) {
	primary := []core.SearchResult{
		{NodeID: "a", Score: 0.5, Origin: core.OriginMyDomain, Stages: []core.Stage{core.StageExact}},
		{NodeID: "b", Score: 0.4, Origin: core.OriginMyDomain, Stages: []core.Stage{core.StageRelationship, core.StageExact}},
	}
	neighbor := []core.SearchResult{
		{NodeID: "a", Score: 0.5, Origin: "neighbor:x", Stages: []core.Stage{core.StageVector}},
		{NodeID: "b", Score: 0.9, Origin: "neighbor:x", Stages: []core.Stage{core.StageVector, core.StageRelationship}},
		{NodeID: "c", Score: 0.5, Origin: "neighbor:x", Stages: []core.Stage{core.StageGraphExpansion}},
	}

	merged := Merge(primary, neighbor)
	require.Len(t, merged, 3)
	assert.Equal(t, core.NodeID("b"), merged[0].NodeID)
	assert.Equal(t, "neighbor:x", merged[0].Origin)
	assert.Equal(t, core.NodeID("a"), merged[1].NodeID)
	assert.Equal(t, core.OriginMyDomain, merged[1].Origin, "ties keep the primary entry")
	assert.Equal(t, core.NodeID("c"), merged[2].NodeID)

	assert.InDelta(t, 0.9, merged[0].Score, 1e-6)
	assert.Equal(t, []core.Stage{core.StageExact, core.StageVector, core.StageRelationship}, merged[0].Stages)
	assert.Equal(t, []core.Stage{core.StageExact, core.StageVector}, merged[1].Stages)
	assert.Equal(t, []core.Stage{core.StageGraphExpansion}, merged[2].Stages)
	assert.Equal(t, []core.Stage{core.StageRelationship, core.StageExact}, primary[1].Stages, "inputs are not modified")
}

func TestConfidence(t *testing.T) {
	results := []core.SearchResult{{Score: 0.9}, {Score: 0.6}, {Score: 0.3}, {Score: 0.1}}
	assert.InDelta(t, 0.6, Confidence(results, 3), 1e-6)
	assert.InDelta(t, 0.75, Confidence(results[:2], 3), 1e-6)
	assert.Zero(t, Confidence(nil, 3))
}

func TestListAndGetDomains(t *testing.T) {
	f := newFixture(t, true)

	list := f.manager.ListDomains()
	require.Len(t, list, 3)
	assert.Equal(t, core.DomainID("dom_n1"), list[0].ID)
	assert.Equal(t, core.DomainID("dom_p"), list[2].ID)
	assert.Equal(t, 2, list[2].NodeCount)
	assert.Equal(t, 2, list[2].NeighborCount)

	detail, err := f.manager.GetDomain("dom_p")
	require.NoError(t, err)
	assert.Equal(t, []NeighborRef{
		{ID: "dom_n1", Name: "neighbor one"},
		{ID: "dom_n2", Name: "neighbor two"},
	}, detail.Neighbors)

	_, err = f.manager.GetDomain("dom_missing")
	assert.ErrorIs(t, err, core.ErrDomainNotFound)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, true)
	h := f.manager.Health(ctx)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, 3, h.DomainCount)
	assert.Equal(t, 4, h.TotalNodeCount)

	empty := newFixture(t, false)
	assert.Equal(t, StatusDegraded, empty.manager.Health(ctx).Status)

	f.provider.GetMockNodeEmbedder().EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model unavailable")
	}
	h = f.manager.Health(ctx)
	assert.Equal(t, StatusDegraded, h.Status)
	assert.False(t, h.EmbeddingOK)

	require.NoError(t, f.store.Close())
	h = f.manager.Health(ctx)
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.False(t, h.StorageOK)
}
