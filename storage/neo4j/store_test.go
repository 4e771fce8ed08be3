package neo4j

import (
	"strings"
	"testing"
	"time"

	neo "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(props map[string]any) *neo.Record {
	r := &neo.Record{}
	for k, v := range props {
		r.Keys = append(r.Keys, k)
		r.Values = append(r.Values, v)
	}
	return r
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.NodeLabel = "Law Unit"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.EdgeType = "CONTAINS`) DETACH DELETE n //"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.URI = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.EdgeIndex = "1index"
	assert.Error(t, cfg.Validate())
}

func TestBuildQueriesUsesConfiguredNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeLabel = "Statute"
	cfg.EdgeType = "HAS_PART"
	q := buildQueries(cfg)

	assert.Contains(t, q.putNodes, "(n:Statute {id: row.id})")
	assert.Contains(t, q.putEdges, "-[r:HAS_PART]->")
	assert.Contains(t, q.neighbors[storage.DirectionIn], "(m:Statute)-[:HAS_PART]->(n:Statute {id: $id})")
	assert.Contains(t, q.saveDomains, "(d:Domain {id: row.id})")
	assert.Contains(t, q.path, "[:HAS_PART*..32]")
	assert.NotContains(t, q.listEdges, ":L)")

	// Relationship search never filters on content type.
	assert.NotContains(t, q.edgeIndex, "WHERE")
	assert.NotContains(t, q.edgeSimilarity, "content_type =")
}

func TestSchemaStatements(t *testing.T) {
	q := buildQueries(DefaultConfig())
	statements := q.schema(768, 3072)
	require.Len(t, statements, 4)
	assert.Contains(t, statements[0], "FOR (n:LawUnit) REQUIRE n.id IS UNIQUE")
	assert.Contains(t, statements[2], "lawunit_embedding")
	assert.Contains(t, statements[2], "`vector.dimensions`: 768")
	assert.Contains(t, statements[3], "()-[r:CONTAINS]-()")
	assert.Contains(t, statements[3], "`vector.dimensions`: 3072")
	for _, s := range statements {
		assert.True(t, strings.Contains(s, "IF NOT EXISTS"), s)
	}
}

func TestCosineFromScore(t *testing.T) {
	assert.InDelta(t, 1.0, cosineFromScore(1.0), 1e-6)
	assert.InDelta(t, 0.0, cosineFromScore(0.5), 1e-6)
	assert.InDelta(t, -1.0, cosineFromScore(0.0), 1e-6)
	assert.InDelta(t, 0.8, cosineFromScore(0.9), 1e-6)
	assert.InDelta(t, 1.0, cosineFromScore(1.2), 1e-6)
}

func TestNodeFromRecord(t *testing.T) {
	inserted := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	node, err := nodeFromRecord(record(map[string]any{
		"id":          "p17-1",
		"path":        "도로법::제17조::①",
		"title":       "제17조 ①",
		"content":     "① 도로의 관리",
		"embedding":   []any{0.5, 1.0, int64(0)},
		"domain_id":   "dom_a",
		"leaf":        true,
		"inserted_at": inserted.UnixMicro(),
		"updated_at":  nil,
	}))
	require.NoError(t, err)
	assert.Equal(t, core.NodeID("p17-1"), node.ID)
	assert.Equal(t, []float32{0.5, 1, 0}, node.Vector)
	assert.Equal(t, core.DomainID("dom_a"), node.DomainID)
	assert.True(t, node.Leaf)
	assert.Equal(t, inserted, node.InsertedAt)
	assert.True(t, node.UpdatedAt.IsZero())

	_, err = nodeFromRecord(record(map[string]any{"title": "no id"}))
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestNodePropertiesDropEmptyVector(t *testing.T) {
	props := nodeProperties(&core.Node{ID: "law", Content: "도로법"})
	assert.Nil(t, props["embedding"])
	assert.Equal(t, int64(0), props["inserted_at"])
}

func TestEdgeFromRecord(t *testing.T) {
	id := core.EdgeID("art17", "p17-2")
	props := edgeProperties(&core.ContainmentEdge{
		ID:          id,
		Source:      "art17",
		Target:      "p17-2",
		ContentType: core.ContentTypeException,
	})
	edge, err := edgeFromRecord(record(props))
	require.NoError(t, err)
	assert.Equal(t, id, edge.ID)
	assert.Equal(t, core.ContentTypeException, edge.ContentType)

	_, err = edgeFromRecord(record(map[string]any{"source": "art17"}))
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestDomainFromRecord(t *testing.T) {
	domain, err := domainFromRecord(record(map[string]any{
		"id":        "dom_a",
		"name":      "도로 관리",
		"centroid":  []any{0.1, 0.2},
		"members":   []any{"p17-1", "p17-2"},
		"neighbors": []any{"dom_b"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []core.NodeID{"p17-1", "p17-2"}, domain.Members)
	assert.Equal(t, []core.DomainID{"dom_b"}, domain.Neighbors)
	assert.InDelta(t, 0.2, domain.Centroid[1], 1e-6)
}
