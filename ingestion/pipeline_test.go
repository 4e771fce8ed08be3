package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lexis/ai/mock"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/registry"
	"github.com/poiesic/lexis/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *badger.GraphStore {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func statute() ([]*core.Node, []*core.ContainmentEdge) {
	nodes := []*core.Node{
		{ID: "law", Path: "도로법", Title: "도로법", Content: "도로법"},
		{ID: "art61", Path: "도로법::제61조", Title: "제61조 도로의 점용 허가", Content: "제61조"},
		{ID: "p61-1", Path: "도로법::제61조::①", Content: "도로를 점용하려는 자는 허가를 받아야 한다.", Leaf: true},
		{ID: "p61-2", Path: "도로법::제61조::②", Content: "허가의 기준은 대통령령으로 정한다.", Leaf: true},
	}
	edges := []*core.ContainmentEdge{
		{Source: "law", Target: "art61", Context: "도로법 제61조 도로의 점용 허가", ContentType: core.ContentTypeStructural},
		{Source: "art61", Target: "p61-1", Context: "점용 허가 의무", ContentType: core.ContentTypeGeneral},
		{Source: "art61", Target: "p61-2"},
	}
	return nodes, edges
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	_, err := NewPipeline(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrGraphStoreRequired)
	_, err = NewPipeline(newTestStore(t), nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestIngestEmbedsNodesAndEdges(t *testing.T) {
	store := newTestStore(t)
	provider := mock.NewMockProvider()
	p, err := NewPipeline(store, provider, WithPoolSize(2), WithBatchSize(2))
	require.NoError(t, err)
	defer p.Release()
	ctx := context.Background()

	nodes, edges := statute()
	require.NoError(t, p.Ingest(ctx, nodes, edges))
	require.NoError(t, p.Wait())

	stored, err := store.ListNodes(ctx, false)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, n := range stored {
		assert.Len(t, n.Vector, mock.NodeDimensions, "node %s", n.ID)
		assert.Empty(t, n.DomainID, "no domains to route into")
	}

	edge, err := store.GetEdge(ctx, "art61", "p61-1")
	require.NoError(t, err)
	assert.Len(t, edge.Vector, mock.RelationshipDimensions)

	edge, err = store.GetEdge(ctx, "art61", "p61-2")
	require.NoError(t, err)
	assert.Empty(t, edge.Vector, "edges without context are not embedded")
}

func TestIngestKeepsExistingVectors(t *testing.T) {
	store := newTestStore(t)
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(2), nil, nil)
	p, err := NewPipeline(store, provider)
	require.NoError(t, err)
	defer p.Release()
	ctx := context.Background()

	node := &core.Node{ID: "p1", Content: "text", Vector: []float32{1, 0}, Leaf: true}
	require.NoError(t, p.Ingest(ctx, []*core.Node{node}, nil))
	require.NoError(t, p.Wait())

	stored, err := store.GetNode(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, stored.Vector)
	assert.Zero(t, provider.GetMockNodeEmbedder().CallCount())
}

func TestIngestRoutesLeavesIntoDomains(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nodes := mock.NewFixedEmbedder(2, map[string][]float32{
		"seed a": {1, 0},
		"seed b": {0, 1},
		"new a":  {0.9, 0.1},
		"new b":  {0.2, 0.8},
	})
	provider := mock.NewMockProviderWithServices(nodes, nil, nil)
	reg, err := registry.New(store, provider)
	require.NoError(t, err)

	require.NoError(t, store.PutNodes(ctx,
		&core.Node{ID: "a0", Content: "seed a", Vector: []float32{1, 0}, Leaf: true},
		&core.Node{ID: "b0", Content: "seed b", Vector: []float32{0, 1}, Leaf: true},
	))
	require.NoError(t, reg.Add(ctx,
		&core.Domain{ID: "dom_a", Centroid: []float32{1, 0}, Members: []core.NodeID{"a0"}},
		&core.Domain{ID: "dom_b", Centroid: []float32{0, 1}, Members: []core.NodeID{"b0"}},
	))

	p, err := NewPipeline(store, provider, WithAssigner(reg))
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Ingest(ctx, []*core.Node{
		{ID: "a1", Content: "new a", Leaf: true},
		{ID: "b1", Content: "new b", Leaf: true},
		{ID: "art", Content: "structural unit"},
	}, nil))
	require.NoError(t, p.Wait())

	a, err := reg.Get("dom_a")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"a0", "a1"}, a.Members)
	assert.InDeltaSlice(t, []float32{0.95, 0.05}, a.Centroid, 1e-6)

	b, err := reg.Get("dom_b")
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"b0", "b1"}, b.Members)

	stored, err := store.GetNode(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.DomainID("dom_a"), stored.DomainID)
	stored, err = store.GetNode(ctx, "art")
	require.NoError(t, err)
	assert.Empty(t, stored.DomainID)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	p, err := NewPipeline(store, mock.NewMockProvider())
	require.NoError(t, err)
	defer p.Release()
	ctx := context.Background()

	err = p.Ingest(ctx,
		[]*core.Node{{ID: "ok", Content: "fine"}, {ID: "", Content: "no id"}},
		[]*core.ContainmentEdge{{Source: "ok", Target: "ok"}},
	)
	assert.ErrorIs(t, err, core.ErrInvalidNode)
	assert.ErrorIs(t, err, core.ErrInvalidEdge)

	_, err = store.GetNode(ctx, "ok")
	assert.Error(t, err, "nothing is stored when validation fails")
}

func TestWaitReportsEmbeddingErrors(t *testing.T) {
	store := newTestStore(t)
	nodes := mock.NewMockEmbedder(2)
	nodes.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model not loaded")
	}
	p, err := NewPipeline(store, mock.NewMockProviderWithServices(nodes, nil, nil))
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Ingest(context.Background(), []*core.Node{{ID: "p1", Content: "text", Leaf: true}}, nil))
	err = p.Wait()
	assert.ErrorContains(t, err, "model not loaded")

	assert.NoError(t, p.Wait(), "errors are reported once")
}

func TestWaitReportsMismatchedEmbeddings(t *testing.T) {
	store := newTestStore(t)
	nodes := mock.NewMockEmbedder(2)
	nodes.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{}, nil
	}
	p, err := NewPipeline(store, mock.NewMockProviderWithServices(nodes, nil, nil))
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Ingest(context.Background(), []*core.Node{{ID: "p1", Content: "text"}}, nil))
	assert.ErrorIs(t, p.Wait(), ErrEmbeddingMismatch)
}
