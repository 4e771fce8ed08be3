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

package reembed

import (
	"context"
	"slices"

	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

const (
	// DefaultBatchSize is the default number of items embedded per request
	DefaultBatchSize = 100
)

// Iterator reads stored items for reembedding.
type Iterator[T any] struct {
	load      func(context.Context) ([]T, error)
	batchSize int
}

// NewNodeIterator iterates over every node in the store, leaves and
// structural units alike.
func NewNodeIterator(store storage.GraphStore, batchSize int) *Iterator[*core.Node] {
	return newIterator(func(ctx context.Context) ([]*core.Node, error) {
		return store.ListNodes(ctx, false)
	}, batchSize)
}

// NewEdgeIterator iterates over the edges that carry context text. Edges
// without context have no relationship embedding and are skipped.
func NewEdgeIterator(store storage.GraphStore, batchSize int) *Iterator[*core.ContainmentEdge] {
	return newIterator(func(ctx context.Context) ([]*core.ContainmentEdge, error) {
		edges, err := store.ListEdges(ctx)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(edges, func(e *core.ContainmentEdge) bool {
			return e.Context == ""
		}), nil
	}, batchSize)
}

func newIterator[T any](load func(context.Context) ([]T, error), batchSize int) *Iterator[T] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Iterator[T]{load: load, batchSize: batchSize}
}

// Load takes a snapshot of the items to process.
func (it *Iterator[T]) Load(ctx context.Context) (*Snapshot[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := it.load(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot[T]{items: items, batchSize: it.batchSize}, nil
}

// Snapshot is a fixed set of items loaded by an Iterator.
type Snapshot[T any] struct {
	items     []T
	batchSize int
}

// Len returns the number of items in the snapshot.
func (s *Snapshot[T]) Len() int {
	return len(s.items)
}

// ForEach calls fn for each batch in order.
// Iteration stops on the first error from fn or when ctx is done; the
// context is checked between batches.
func (s *Snapshot[T]) ForEach(ctx context.Context, fn func([]T) error) error {
	for batch := range slices.Chunk(s.items, s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return ctx.Err()
}
