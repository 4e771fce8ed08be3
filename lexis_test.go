package lexis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/lexis/ai/mock"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var texts = map[string][]float32{
	"도로를 점용하려는 자는 허가를 받아야 한다.": {1, 0, 0},
	"점용 허가의 기준은 대통령령으로 정한다.":   {0.95, 0.1, 0},
	"점용료를 징수할 수 있다.":           {0.9, 0.15, 0},
	"도로관리청은 도로를 보수하여야 한다.":     {0, 1, 0},
	"보수 공사의 기간을 공고한다.":         {0.1, 0.95, 0},
	"보수 비용은 관리청이 부담한다.":        {0.15, 0.9, 0},
	"새 점용 규정":                  {0.97, 0.05, 0},
	"점용 허가":                    {1, 0.05, 0},
}

func statute() []*core.Node {
	return []*core.Node{
		{ID: "law", Path: "도로법", Title: "도로법", Content: "도로법"},
		{ID: "a61", Path: "도로법::제61조", Title: "제61조 도로의 점용 허가", Content: "제61조 도로의 점용 허가"},
		{ID: "a31", Path: "도로법::제31조", Title: "제31조 도로의 보수", Content: "제31조 도로의 보수"},
		{ID: "p61-1", Path: "도로법::제61조::①", Content: "도로를 점용하려는 자는 허가를 받아야 한다.", Leaf: true},
		{ID: "p61-2", Path: "도로법::제61조::②", Content: "점용 허가의 기준은 대통령령으로 정한다.", Leaf: true},
		{ID: "p61-3", Path: "도로법::제61조::③", Content: "점용료를 징수할 수 있다.", Leaf: true},
		{ID: "p31-1", Path: "도로법::제31조::①", Content: "도로관리청은 도로를 보수하여야 한다.", Leaf: true},
		{ID: "p31-2", Path: "도로법::제31조::②", Content: "보수 공사의 기간을 공고한다.", Leaf: true},
		{ID: "p31-3", Path: "도로법::제31조::③", Content: "보수 비용은 관리청이 부담한다.", Leaf: true},
	}
}

func edges() []*core.ContainmentEdge {
	return []*core.ContainmentEdge{
		{Source: "law", Target: "a61", Context: "도로법 제61조", ContentType: core.ContentTypeStructural},
		{Source: "law", Target: "a31", Context: "도로법 제31조", ContentType: core.ContentTypeStructural},
		{Source: "a61", Target: "p61-1", Context: "점용 허가 의무"},
		{Source: "a61", Target: "p61-2", Context: "허가 기준", ContentType: core.ContentTypeDetail},
		{Source: "a61", Target: "p61-3", Context: "점용료", ContentType: core.ContentTypeAddition},
		{Source: "a31", Target: "p31-1", Context: "보수 의무"},
		{Source: "a31", Target: "p31-2", Context: "공사 공고", ContentType: core.ContentTypeDetail},
		{Source: "a31", Target: "p31-3", Context: "비용 부담", ContentType: core.ContentTypeDetail},
	}
}

func newTestEngine(t *testing.T, provider *mock.MockProvider) *Engine {
	t.Helper()
	if provider == nil {
		provider = mock.NewMockProviderWithServices(mock.NewFixedEmbedder(3, texts), nil, nil)
	}
	config := DefaultConfig()
	config.Store.Backend = StoreMemory
	config.Ingestion.PoolSize = 2

	engine, err := NewEngine(context.Background(), config, WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

// seed ingests the statute and waits for embeddings.
func seed(t *testing.T, engine *Engine) {
	t.Helper()
	pipeline, err := engine.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()
	require.NoError(t, pipeline.Ingest(context.Background(), statute(), edges()))
	require.NoError(t, pipeline.Wait())
}

func TestNewEngine(t *testing.T) {
	t.Run("badger store on disk", func(t *testing.T) {
		config := DefaultConfig()
		config.Store.Path = filepath.Join(t.TempDir(), "lexis.db")

		engine, err := NewEngine(context.Background(), config, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		defer engine.Close()

		assert.NotNil(t, engine.Store())
		assert.NotNil(t, engine.Provider())
		assert.NotNil(t, engine.Manager())
		assert.Zero(t, engine.Registry().Len())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(file, []byte("test"), 0644))

		config := DefaultConfig()
		config.Store.Path = file
		engine, err := NewEngine(context.Background(), config, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, engine)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		config := DefaultConfig()
		config.Store.Backend = "sqlite"
		_, err := NewEngine(context.Background(), config, WithProvider(mock.NewMockProvider()))
		assert.ErrorContains(t, err, "unknown backend")
	})
}

func TestEngine_DomainsPersistAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexis.db")
	config := DefaultConfig()
	config.Store.Path = path
	provider := mock.NewMockProviderWithServices(mock.NewFixedEmbedder(3, texts), nil, nil)

	engine, err := NewEngine(context.Background(), config, WithProvider(provider))
	require.NoError(t, err)
	seed(t, engine)
	domains, err := engine.Bootstrap(context.Background())
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	reopened, err := NewEngine(context.Background(), config, WithProvider(provider))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, len(domains), reopened.Registry().Len())
	for _, d := range domains {
		loaded, err := reopened.Registry().Get(d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.Members, loaded.Members)
		assert.Equal(t, d.Name, loaded.Name)
	}
}

func TestEngine_Bootstrap(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed(t, engine)
	ctx := context.Background()

	domains, err := engine.Bootstrap(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, 2, engine.Registry().Len())

	var road, repair *core.Domain
	for _, d := range domains {
		switch {
		case d.HasMember("p61-1"):
			road = d
		case d.HasMember("p31-1"):
			repair = d
		}
	}
	require.NotNil(t, road)
	require.NotNil(t, repair)
	assert.Equal(t, []core.NodeID{"p61-1", "p61-2", "p61-3"}, road.Members)
	assert.Equal(t, []core.NodeID{"p31-1", "p31-2", "p31-3"}, repair.Members)
	assert.Equal(t, "도로를 점용하려는", road.Name)
	assert.Equal(t, []core.DomainID{repair.ID}, road.Neighbors)
	assert.Equal(t, []core.DomainID{road.ID}, repair.Neighbors)

	node, err := engine.Store().GetNode(ctx, "p61-2")
	require.NoError(t, err)
	assert.Equal(t, road.ID, node.DomainID)

	node, err = engine.Store().GetNode(ctx, "a61")
	require.NoError(t, err)
	assert.Empty(t, node.DomainID, "structural units are never owned")
}

func TestEngine_BootstrapIsRepeatable(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed(t, engine)
	ctx := context.Background()

	first, err := engine.Bootstrap(ctx)
	require.NoError(t, err)
	second, err := engine.Bootstrap(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	assert.Equal(t, len(first), engine.Registry().Len())
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestEngine_BootstrapLabelFallback(t *testing.T) {
	labeler := mock.NewMockDomainLabeler()
	labeler.LabelDomainFunc = func(context.Context, []string) (string, error) {
		return "", errors.New("labeler offline")
	}
	engine := newTestEngine(t, mock.NewMockProviderWithServices(mock.NewFixedEmbedder(3, texts), nil, labeler))
	seed(t, engine)

	domains, err := engine.Bootstrap(context.Background())
	require.NoError(t, err)
	names := []string{domains[0].Name, domains[1].Name}
	assert.ElementsMatch(t, []string{"도로법::제31조::①", "도로법::제61조::①"}, names)
}

func TestEngine_BootstrapWithoutData(t *testing.T) {
	engine := newTestEngine(t, nil)
	_, err := engine.Bootstrap(context.Background())
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestEngine_SearchAfterBootstrap(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed(t, engine)
	ctx := context.Background()

	domains, err := engine.Bootstrap(ctx)
	require.NoError(t, err)

	resp, err := engine.Manager().Search(ctx, manager.Request{Query: "점용 허가"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	var road core.DomainID
	for _, d := range domains {
		if d.HasMember("p61-1") {
			road = d.ID
		}
	}
	assert.Equal(t, road, resp.DomainID)
	assert.True(t, resp.Stats.Routed)
	assert.Equal(t, core.NodeID("p61-1"), resp.Results[0].NodeID)
	for _, r := range resp.Results {
		assert.Contains(t, []core.NodeID{"p61-1", "p61-2", "p61-3"}, r.NodeID)
	}
}

func TestEngine_IngestAfterBootstrap(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed(t, engine)
	ctx := context.Background()

	_, err := engine.Bootstrap(ctx)
	require.NoError(t, err)

	pipeline, err := engine.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()
	require.NoError(t, pipeline.Ingest(ctx,
		[]*core.Node{{ID: "p61-4", Path: "도로법::제61조::④", Content: "새 점용 규정", Leaf: true}},
		[]*core.ContainmentEdge{{Source: "a61", Target: "p61-4", Context: "새 규정"}},
	))
	require.NoError(t, pipeline.Wait())

	node, err := engine.Store().GetNode(ctx, "p61-4")
	require.NoError(t, err)
	require.NotEmpty(t, node.DomainID)

	d, err := engine.Registry().Get(node.DomainID)
	require.NoError(t, err)
	assert.True(t, d.HasMember("p61-1"), "joined the road occupancy domain")
	assert.True(t, d.HasMember("p61-4"))
}

func TestEngine_Reembed(t *testing.T) {
	engine := newTestEngine(t, nil)
	seed(t, engine)
	ctx := context.Background()

	_, err := engine.Bootstrap(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	nodes, err := engine.NewNodeReembedder(&buf)
	require.NoError(t, err)
	require.NoError(t, nodes.Run(ctx))

	edgesReembedder, err := engine.NewEdgeReembedder(&buf)
	require.NoError(t, err)
	require.NoError(t, edgesReembedder.Run(ctx))

	assert.Contains(t, buf.String(), "9/9 nodes")
	assert.Contains(t, buf.String(), "8/8 edges")

	for _, d := range engine.Registry().List() {
		assert.Len(t, d.Centroid, 3)
	}
}
