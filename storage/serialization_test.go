package storage

import (
	"testing"
	"time"

	"github.com/poiesic/lexis/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{0, 42, core.ID(18446744073709551615), core.EdgeID("a", "b")} {
		decoded, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}

	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestNodeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	node := &core.Node{
		ID:         "도로법::제17조::①",
		Path:       "도로법::제17조::①",
		Title:      "제17조 목적",
		Content:    "이 법은 도로망의 계획수립에 관한 사항을 규정한다.",
		Vector:     []float32{0.25, -0.5, 1},
		DomainID:   "dom_1",
		Leaf:       true,
		InsertedAt: now,
		UpdatedAt:  now.Add(time.Second),
	}

	decoded, err := UnmarshalNode(MarshalNode(node))
	require.NoError(t, err)
	assert.Equal(t, node, decoded)
}

func TestNodeRoundTripZeroValues(t *testing.T) {
	node := &core.Node{ID: "n", Content: "c"}
	decoded, err := UnmarshalNode(MarshalNode(node))
	require.NoError(t, err)
	assert.Equal(t, node, decoded)
	assert.True(t, decoded.InsertedAt.IsZero())
}

func TestEdgeRoundTrip(t *testing.T) {
	edge := &core.ContainmentEdge{
		ID:          core.EdgeID("art17", "art17-1"),
		Source:      "art17",
		Target:      "art17-1",
		Context:     "제17조 > ①",
		Vector:      []float32{1, 2, 3, 4},
		ContentType: core.ContentTypeException,
		InsertedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalEdge(MarshalEdge(edge))
	require.NoError(t, err)
	assert.Equal(t, edge, decoded)
}

func TestDomainRoundTrip(t *testing.T) {
	domain := &core.Domain{
		ID:        "dom_a",
		Name:      "도로 관리",
		Centroid:  []float32{0.1, 0.2},
		Members:   []core.NodeID{"a", "b", "c"},
		Neighbors: []core.DomainID{"dom_b"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalDomain(MarshalDomain(domain))
	require.NoError(t, err)
	assert.Equal(t, domain, decoded)
}

func TestUnmarshalTruncated(t *testing.T) {
	data := MarshalNode(&core.Node{ID: "n", Content: "content", Vector: []float32{1, 2, 3}})

	_, err := UnmarshalNode(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestNodeSet(t *testing.T) {
	var unrestricted NodeSet
	assert.True(t, unrestricted.Contains("anything"))

	set := NewNodeSet("a", "b")
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains("c"))
	assert.ElementsMatch(t, []core.NodeID{"a", "b"}, set.IDs())
	assert.Equal(t, "both", DirectionBoth.String())
}
