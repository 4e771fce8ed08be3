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

// Package expansion grows a scored candidate set along containment edges.
//
// Two strategies are provided. RNE (range network expansion) explores in
// order of accumulated cost and stops at a similarity threshold. INE
// (iterative neighbor expansion) keeps the k neighbors most similar to the
// query at each step for a fixed number of steps. Both read the graph
// through the Graph interface so that a search can share one cache of
// fetched neighborhoods and vectors.
package expansion

import (
	"context"
	"sync"

	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// Graph is the read view of the statute graph the expansions walk.
type Graph interface {
	// Neighbors returns adjacent node ids sorted ascending.
	Neighbors(ctx context.Context, id core.NodeID, direction storage.Direction) ([]core.NodeID, error)

	// Vectors returns node embeddings by id. Nodes without an embedding are omitted.
	Vectors(ctx context.Context, ids []core.NodeID) (map[core.NodeID][]float32, error)
}

// Visit is a node reached by an expansion.
type Visit struct {
	NodeID core.NodeID
	Score  float32
	Cost   float32
	// Seed is the seed the node was reached from.
	Seed core.NodeID
}

type adjacencyKey struct {
	id        core.NodeID
	direction storage.Direction
}

// StoreGraph adapts a storage.GraphStore to Graph, memoizing every lookup.
// A StoreGraph is meant to live for a single search; it is safe for
// concurrent use.
type StoreGraph struct {
	store storage.GraphStore

	mu        sync.Mutex
	adjacency map[adjacencyKey][]core.NodeID
	vectors   map[core.NodeID][]float32
	missing   map[core.NodeID]struct{}
}

var _ Graph = (*StoreGraph)(nil)

// NewStoreGraph wraps store.
func NewStoreGraph(store storage.GraphStore) *StoreGraph {
	return &StoreGraph{
		store:     store,
		adjacency: make(map[adjacencyKey][]core.NodeID),
		vectors:   make(map[core.NodeID][]float32),
		missing:   make(map[core.NodeID]struct{}),
	}
}

// Neighbors implements Graph.
func (g *StoreGraph) Neighbors(ctx context.Context, id core.NodeID, direction storage.Direction) ([]core.NodeID, error) {
	key := adjacencyKey{id: id, direction: direction}
	g.mu.Lock()
	cached, ok := g.adjacency[key]
	g.mu.Unlock()
	if ok {
		return cached, nil
	}

	ids, err := g.store.GetNeighbors(ctx, id, direction)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.adjacency[key] = ids
	g.mu.Unlock()
	return ids, nil
}

// Vectors implements Graph. Unknown ids are fetched in one batch.
func (g *StoreGraph) Vectors(ctx context.Context, ids []core.NodeID) (map[core.NodeID][]float32, error) {
	result := make(map[core.NodeID][]float32, len(ids))
	var fetch []core.NodeID

	g.mu.Lock()
	for _, id := range ids {
		if v, ok := g.vectors[id]; ok {
			result[id] = v
			continue
		}
		if _, ok := g.missing[id]; !ok {
			fetch = append(fetch, id)
		}
	}
	g.mu.Unlock()

	if len(fetch) == 0 {
		return result, nil
	}
	nodes, err := g.store.GetNodes(ctx, fetch...)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range fetch {
		g.missing[id] = struct{}{}
	}
	for _, node := range nodes {
		if len(node.Vector) == 0 {
			continue
		}
		delete(g.missing, node.ID)
		g.vectors[node.ID] = node.Vector
		result[node.ID] = node.Vector
	}
	return result, nil
}

// Seed adds already-known vectors to the cache.
func (g *StoreGraph) Seed(vectors map[core.NodeID][]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, v := range vectors {
		if len(v) > 0 {
			g.vectors[id] = v
		}
	}
}
