package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lexis/ai/mock"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage/badger"
)

func newTestStore(t *testing.T) *badger.GraphStore {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.PutNodes(context.Background(),
		&core.Node{ID: "n1", Content: "one", Vector: []float32{1, 0}, Leaf: true},
		&core.Node{ID: "n2", Content: "two", Vector: []float32{0.8, 0.2}, Leaf: true},
		&core.Node{ID: "n3", Content: "three", Vector: []float32{0, 1}, Leaf: true},
		&core.Node{ID: "n4", Content: "four", Vector: []float32{0.2, 0.8}, Leaf: true},
	))
	return store
}

func testDomains() []*core.Domain {
	return []*core.Domain{
		{ID: "dom_a", Name: "a", Centroid: []float32{0.9, 0.1}, Members: []core.NodeID{"n1", "n2"}},
		{ID: "dom_b", Name: "b", Centroid: []float32{0.1, 0.9}, Members: []core.NodeID{"n3", "n4"}},
	}
}

func newTestRegistry(t *testing.T, store *badger.GraphStore, opts ...Option) *Registry {
	t.Helper()
	r, err := New(store, mock.NewMockProvider(), opts...)
	require.NoError(t, err)
	require.NoError(t, r.Add(context.Background(), testDomains()...))
	return r
}

// assertPartition checks that every leaf belongs to exactly one domain and
// that every centroid is the mean of its members' vectors.
func assertPartition(t *testing.T, r *Registry, store *badger.GraphStore) {
	t.Helper()
	ctx := context.Background()
	leaves, err := store.ListNodes(ctx, true)
	require.NoError(t, err)

	owners := make(map[core.NodeID]int)
	for _, d := range r.List() {
		nodes, err := store.GetNodes(ctx, d.Members...)
		require.NoError(t, err)
		vectors := make([][]float32, len(nodes))
		for i, n := range nodes {
			owners[n.ID]++
			vectors[i] = n.Vector
		}
		mean, err := core.Mean(vectors)
		require.NoError(t, err)
		assert.InDeltaSlice(t, mean, d.Centroid, 1e-6, "centroid of %s", d.ID)
	}
	for _, leaf := range leaves {
		assert.Equal(t, 1, owners[leaf.ID], "leaf %s", leaf.ID)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = New(newTestStore(t), nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
	_, err = New(newTestStore(t), mock.NewMockProvider(), WithConfig(Config{NeighborCount: -1}))
	assert.Error(t, err)
}

func TestAddGetList(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	assert.Equal(t, 2, r.Len())
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, core.DomainID("dom_a"), list[0].ID)
	assert.Equal(t, core.DomainID("dom_b"), list[1].ID)

	d, err := r.Get("dom_b")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"n3", "n4"}, d.Members)

	_, err = r.Get("dom_missing")
	assert.ErrorIs(t, err, core.ErrDomainNotFound)
	_, err = r.Agent("dom_missing")
	assert.ErrorIs(t, err, core.ErrDomainNotFound)

	node, err := store.GetNode(ctx, "n3")
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_b"), node.DomainID)

	err = r.Add(ctx, &core.Domain{ID: "dom_empty"})
	assert.ErrorIs(t, err, core.ErrInvalidDomain)
}

func TestLoad(t *testing.T) {
	store := newTestStore(t)
	newTestRegistry(t, store)

	reloaded, err := New(store, mock.NewMockProvider())
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, 2, reloaded.Len())
	d, err := reloaded.Get("dom_a")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"n1", "n2"}, d.Members)
}

func TestReplace(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	err := r.Replace(ctx, &core.Domain{
		ID:       "dom_c",
		Name:     "c",
		Centroid: []float32{0.6, 0.4},
		Members:  []core.NodeID{"n1", "n2", "n3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	_, err = r.Get("dom_a")
	assert.ErrorIs(t, err, core.ErrDomainNotFound)

	persisted, err := store.LoadDomains(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, core.DomainID("dom_c"), persisted[0].ID)

	n3, err := store.GetNode(ctx, "n3")
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_c"), n3.DomainID)
	n4, err := store.GetNode(ctx, "n4")
	require.NoError(t, err)
	assert.Empty(t, n4.DomainID, "n4 is no longer owned")

	err = r.Replace(ctx, &core.Domain{ID: "dom_bad"})
	assert.ErrorIs(t, err, core.ErrInvalidDomain)
	assert.Equal(t, 1, r.Len(), "invalid input leaves the registry untouched")
}

func TestRoute(t *testing.T) {
	store := newTestStore(t)
	r, err := New(store, mock.NewMockProvider())
	require.NoError(t, err)

	_, _, err = r.Route([]float32{1, 0})
	assert.ErrorIs(t, err, core.ErrNoDomainsAvailable)

	require.NoError(t, r.Add(context.Background(), testDomains()...))
	d, score, err := r.Route([]float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_b"), d.ID)
	assert.Greater(t, score, float32(0.9))

	// Equidistant from both centroids.
	d, _, err = r.Route([]float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), d.ID)
}

func TestAssignNewNode(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	// The stored centroids are approximate until the first update.
	require.NoError(t, r.RecomputeAll(ctx))
	assertPartition(t, r, store)

	n5 := &core.Node{ID: "n5", Content: "five", Vector: []float32{0.9, 0.3}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, n5))

	id, err := r.AssignNode(ctx, n5)
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), id)

	d, err := r.Get("dom_a")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"n1", "n2", "n5"}, d.Members)
	assertPartition(t, r, store)

	stored, err := store.GetNode(ctx, "n5")
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), stored.DomainID)

	// Assigning again is a no-op.
	id, err = r.AssignNode(ctx, n5)
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), id)
	assertPartition(t, r, store)
}

func TestAssignMovesNodeBetweenDomains(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()
	require.NoError(t, r.RecomputeAll(ctx))

	moved := &core.Node{ID: "n2", Content: "two", Vector: []float32{0.1, 1}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, moved))

	id, err := r.AssignNode(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_b"), id)

	a, err := r.Get("dom_a")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"n1"}, a.Members)
	assert.Equal(t, []float32{1, 0}, a.Centroid)
	assertPartition(t, r, store)
}

func TestAssignRejectsStructuralNodes(t *testing.T) {
	r := newTestRegistry(t, newTestStore(t))
	_, err := r.AssignNode(context.Background(), &core.Node{ID: "art", Vector: []float32{1, 0}})
	assert.ErrorIs(t, err, ErrNotAssignable)
	_, err = r.AssignNode(context.Background(), &core.Node{ID: "p", Leaf: true})
	assert.ErrorIs(t, err, ErrNotAssignable)
}

func TestNewDomainFloor(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store, WithConfig(Config{NeighborCount: 3, NewDomainFloor: 0.9}))
	ctx := context.Background()

	outlier := &core.Node{ID: "n9", Title: "outlier", Content: "nine", Vector: []float32{-1, 0}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, outlier))

	id, err := r.AssignNode(ctx, outlier)
	require.NoError(t, err)
	assert.Equal(t, core.DomainIDFromMembers([]core.NodeID{"n9"}), id)
	assert.Equal(t, 3, r.Len())

	d, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "outlier", d.Name)
	assert.Len(t, d.Neighbors, 2)
}

func TestMerge(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	merged, err := r.Merge(ctx, "dom_a", "dom_b")
	require.NoError(t, err)
	assert.Equal(t, core.DomainIDFromMembers([]core.NodeID{"n1", "n2", "n3", "n4"}), merged.ID)
	assert.Equal(t, "a", merged.Name)
	assert.Equal(t, []core.NodeID{"n1", "n2", "n3", "n4"}, merged.Members)
	assert.Equal(t, 1, r.Len())
	assertPartition(t, r, store)

	persisted, err := store.LoadDomains(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, merged.ID, persisted[0].ID)

	_, err = r.Merge(ctx, merged.ID, merged.ID)
	assert.Error(t, err)
}

func TestLinkNeighbors(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store, WithConfig(Config{NeighborCount: 1}))
	ctx := context.Background()
	require.NoError(t, store.PutNodes(ctx, &core.Node{ID: "n5", Content: "five", Vector: []float32{0.7, 0.7}, Leaf: true}))
	require.NoError(t, r.Add(ctx, &core.Domain{ID: "dom_c", Centroid: []float32{0.7, 0.7}, Members: []core.NodeID{"n5"}}))

	require.NoError(t, r.LinkNeighbors(ctx))
	a, _ := r.Get("dom_a")
	b, _ := r.Get("dom_b")
	c, _ := r.Get("dom_c")
	assert.Equal(t, []core.DomainID{"dom_c"}, a.Neighbors)
	assert.Equal(t, []core.DomainID{"dom_c"}, b.Neighbors)
	assert.Equal(t, []core.DomainID{"dom_a"}, c.Neighbors)
}

func TestEmptiedDomainIsUnlinked(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store, WithConfig(Config{NeighborCount: 1}))
	ctx := context.Background()
	require.NoError(t, store.PutNodes(ctx, &core.Node{ID: "n5", Content: "five", Vector: []float32{0.7, 0.7}, Leaf: true}))
	require.NoError(t, r.Add(ctx, &core.Domain{ID: "dom_c", Centroid: []float32{0.7, 0.7}, Members: []core.NodeID{"n5"}}))
	require.NoError(t, r.LinkNeighbors(ctx))

	moved := &core.Node{ID: "n5", Content: "five", Vector: []float32{1, 0}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, moved))
	id, err := r.AssignNode(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), id)

	_, err = r.Get("dom_c")
	assert.ErrorIs(t, err, core.ErrDomainNotFound)
	for _, d := range r.List() {
		assert.NotContains(t, d.Neighbors, core.DomainID("dom_c"), "neighbors of %s", d.ID)
	}
	a, _ := r.Get("dom_a")
	assert.Equal(t, []core.DomainID{"dom_b"}, a.Neighbors)

	persisted, err := store.LoadDomains(ctx)
	require.NoError(t, err)
	for _, d := range persisted {
		assert.NotContains(t, d.Neighbors, core.DomainID("dom_c"), "persisted neighbors of %s", d.ID)
	}
	assertPartition(t, r, store)
}

func TestUpdateAfterMergeDoesNotResurrectDomain(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	// An assignment that resolved dom_a before the merge took its lock.
	stale, err := r.entry("dom_a")
	require.NoError(t, err)

	merged, err := r.Merge(ctx, "dom_a", "dom_b")
	require.NoError(t, err)

	stale.mu.Lock()
	err = r.update(ctx, stale, func(d *core.Domain) error {
		d.Members = append(d.Members, "n5")
		return nil
	})
	stale.mu.Unlock()
	assert.ErrorIs(t, err, core.ErrDomainNotFound)

	persisted, err := store.LoadDomains(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, merged.ID, persisted[0].ID)

	// Assignment routes to the merged domain instead.
	n5 := &core.Node{ID: "n5", Content: "five", Vector: []float32{1, 0.1}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, n5))
	id, err := r.AssignNode(ctx, n5)
	require.NoError(t, err)
	assert.Equal(t, merged.ID, id)
	assertPartition(t, r, store)
}

func TestAgentSeesUpdatedSnapshot(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	agent, err := r.Agent("dom_a")
	require.NoError(t, err)
	before := agent.Domain()

	n5 := &core.Node{ID: "n5", Content: "five", Vector: []float32{1, 0.1}, Leaf: true}
	require.NoError(t, store.PutNodes(ctx, n5))
	_, err = r.AssignNode(ctx, n5)
	require.NoError(t, err)

	assert.Len(t, before.Members, 2, "old snapshots are never modified")
	assert.Len(t, agent.Domain().Members, 3)
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	store := newTestStore(t)
	r := newTestRegistry(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, d := range r.List() {
					assert.Len(t, d.Centroid, 2)
					assert.NotEmpty(t, d.Members)
				}
				_, _, err := r.Route([]float32{1, 0})
				assert.NoError(t, err)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		vector := []float32{1, 0}
		if i%2 == 1 {
			vector = []float32{0, 1}
		}
		node := &core.Node{ID: "n2", Content: "two", Vector: vector, Leaf: true}
		require.NoError(t, store.PutNodes(ctx, node))
		_, err := r.AssignNode(ctx, node)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	assertPartition(t, r, store)
}
