package badger

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// PutEdges inserts or replaces containment edges and their adjacency entries.
func (s *GraphStore) PutEdges(ctx context.Context, edges ...*core.ContainmentEdge) error {
	for _, edge := range edges {
		if err := core.ValidateEdge(edge); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	return s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, edge := range edges {
			edge.ID = core.EdgeID(edge.Source, edge.Target)
			if edge.InsertedAt.IsZero() {
				edge.InsertedAt = now
			}
			if edge.ContentType == "" {
				edge.ContentType = core.ContentTypeGeneral
			}

			id := storage.MarshalID(edge.ID)
			if err := wb.Set(makeEdgeKey(edge.ID), storage.MarshalEdge(edge)); err != nil {
				return err
			}
			if err := wb.Set(makeChildKey(edge.Source, edge.Target), id); err != nil {
				return err
			}
			if err := wb.Set(makeParentKey(edge.Target, edge.Source), id); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetEdge retrieves the edge source -> target.
func (s *GraphStore) GetEdge(ctx context.Context, source, target core.NodeID) (*core.ContainmentEdge, error) {
	var result *core.ContainmentEdge
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEdge(tx, core.EdgeID(source, target))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListEdges returns every edge ordered by source then target.
func (s *GraphStore) ListEdges(ctx context.Context) ([]*core.ContainmentEdge, error) {
	var result []*core.ContainmentEdge
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(edgePrefix), true, func(_ []byte, item *badger.Item) error {
			return item.Value(func(val []byte) error {
				edge, err := storage.UnmarshalEdge(val)
				if err != nil {
					return err
				}
				result = append(result, edge)
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b *core.ContainmentEdge) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Target, b.Target))
	})
	return result, nil
}

// readEdge reads an edge inside tx. Returns nil without error if it doesn't exist.
func readEdge(tx *badger.Txn, id core.ID) (*core.ContainmentEdge, error) {
	item, err := tx.Get(makeEdgeKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var edge *core.ContainmentEdge
	err = item.Value(func(val []byte) error {
		edge, err = storage.UnmarshalEdge(val)
		return err
	})
	return edge, err
}
