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

package storage

import (
	"context"

	"github.com/poiesic/lexis/core"
)

// Direction selects which containment edges GetNeighbors follows.
type Direction int

const (
	// DirectionIn follows edges into the node, yielding its parents.
	DirectionIn Direction = iota + 1
	// DirectionOut follows edges out of the node, yielding its children.
	DirectionOut
	// DirectionBoth yields parents and children.
	DirectionBoth
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// NodeSet restricts index searches to a set of node ids.
// A nil NodeSet means no restriction.
type NodeSet map[core.NodeID]struct{}

// NewNodeSet builds a NodeSet from ids.
func NewNodeSet(ids ...core.NodeID) NodeSet {
	set := make(NodeSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is allowed by the set.
func (s NodeSet) Contains(id core.NodeID) bool {
	if s == nil {
		return true
	}
	_, ok := s[id]
	return ok
}

// IDs returns the members of the set in no particular order.
func (s NodeSet) IDs() []core.NodeID {
	ids := make([]core.NodeID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// GraphStore is the persistent statute graph: nodes, containment edges,
// and the two vector indexes over node and relationship embeddings.
// Implementations must be thread-safe and support concurrent access.
type GraphStore interface {
	// PutNodes inserts or replaces nodes.
	// Sets InsertedAt if not already set and always refreshes UpdatedAt.
	PutNodes(ctx context.Context, nodes ...*core.Node) error

	// GetNode retrieves a single node.
	// Returns ErrNotFound if the node doesn't exist.
	GetNode(ctx context.Context, id core.NodeID) (*core.Node, error)

	// GetNodes retrieves multiple nodes in the order requested.
	// Missing ids are skipped without error.
	GetNodes(ctx context.Context, ids ...core.NodeID) ([]*core.Node, error)

	// ListNodes returns every node, or only leaf nodes when leafOnly is set,
	// ordered by id.
	ListNodes(ctx context.Context, leafOnly bool) ([]*core.Node, error)

	// DeleteNodes removes nodes and every edge touching them.
	DeleteNodes(ctx context.Context, ids ...core.NodeID) error

	// SetNodeDomain records the owning domain for the given nodes.
	SetNodeDomain(ctx context.Context, domainID core.DomainID, ids ...core.NodeID) error

	// PutEdges inserts or replaces containment edges.
	PutEdges(ctx context.Context, edges ...*core.ContainmentEdge) error

	// GetEdge retrieves the edge source -> target.
	// Returns ErrNotFound if the edge doesn't exist.
	GetEdge(ctx context.Context, source, target core.NodeID) (*core.ContainmentEdge, error)

	// ListEdges returns every edge ordered by source then target.
	ListEdges(ctx context.Context) ([]*core.ContainmentEdge, error)

	// VectorSearchNodes queries the node embedding index.
	// Only nodes contained in allowed are returned. Results are ordered by
	// score descending, ties by node id, and truncated to topK.
	VectorSearchNodes(ctx context.Context, vector []float32, topK int, allowed NodeSet) ([]core.ScoredNode, error)

	// VectorSearchEdges queries the relationship embedding index.
	// Only edges with at least one endpoint in allowed are returned.
	// No filtering by content type is applied.
	VectorSearchEdges(ctx context.Context, vector []float32, topK int, allowed NodeSet) ([]core.ScoredEdge, error)

	// GetNeighbors returns the ids adjacent to id along containment edges,
	// sorted ascending.
	GetNeighbors(ctx context.Context, id core.NodeID, direction Direction) ([]core.NodeID, error)

	// GetPath returns the shortest containment path between a and b as a
	// sequence of edges, ignoring edge direction. Returns ErrNotFound if the
	// nodes are not connected.
	GetPath(ctx context.Context, a, b core.NodeID) ([]*core.ContainmentEdge, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// DomainRepository persists domain records.
type DomainRepository interface {
	// SaveDomains inserts or replaces domains.
	SaveDomains(ctx context.Context, domains ...*core.Domain) error

	// DeleteDomains removes domains by id. Missing ids are ignored.
	DeleteDomains(ctx context.Context, ids ...core.DomainID) error

	// LoadDomains returns every persisted domain ordered by id.
	LoadDomains(ctx context.Context) ([]*core.Domain, error)
}

// Store combines the graph and domain persistence of a single backend.
type Store interface {
	GraphStore
	DomainRepository
}
