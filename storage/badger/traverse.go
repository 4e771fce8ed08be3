package badger

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// GetNeighbors lists adjacent node ids from the adjacency indexes.
func (s *GraphStore) GetNeighbors(ctx context.Context, id core.NodeID, direction storage.Direction) ([]core.NodeID, error) {
	var result []core.NodeID
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = neighbors(tx, id, direction)
		return err
	}, false)
	return result, err
}

// GetPath finds the shortest containment path between a and b with a
// breadth-first search over both edge directions.
func (s *GraphStore) GetPath(ctx context.Context, a, b core.NodeID) ([]*core.ContainmentEdge, error) {
	var path []*core.ContainmentEdge
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if a == b {
			return nil
		}

		prev := map[core.NodeID]core.NodeID{a: a}
		queue := []core.NodeID{a}
		found := false
		for len(queue) > 0 && !found {
			if err := ctx.Err(); err != nil {
				return err
			}
			current := queue[0]
			queue = queue[1:]

			adjacent, err := neighbors(tx, current, storage.DirectionBoth)
			if err != nil {
				return err
			}
			for _, next := range adjacent {
				if _, seen := prev[next]; seen {
					continue
				}
				prev[next] = current
				if next == b {
					found = true
					break
				}
				queue = append(queue, next)
			}
		}
		if !found {
			return fmt.Errorf("%w: no path from %s to %s", storage.ErrNotFound, a, b)
		}

		for node := b; node != a; node = prev[node] {
			parent := prev[node]
			edge, err := readEdge(tx, core.EdgeID(parent, node))
			if err != nil {
				return err
			}
			if edge == nil {
				edge, err = readEdge(tx, core.EdgeID(node, parent))
				if err != nil {
					return err
				}
			}
			if edge == nil {
				return fmt.Errorf("%w: edge between %s and %s", storage.ErrNotFound, parent, node)
			}
			path = append(path, edge)
		}
		slices.Reverse(path)
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return path, nil
}

// neighbors reads adjacency entries for id inside tx, sorted and de-duplicated.
func neighbors(tx *badger.Txn, id core.NodeID, direction storage.Direction) ([]core.NodeID, error) {
	var prefixes []string
	switch direction {
	case storage.DirectionIn:
		prefixes = []string{parentPrefix}
	case storage.DirectionOut:
		prefixes = []string{childPrefix}
	case storage.DirectionBoth:
		prefixes = []string{parentPrefix, childPrefix}
	default:
		return nil, fmt.Errorf("%w: direction %d", storage.ErrInvalidQuery, direction)
	}

	var result []core.NodeID
	for _, p := range prefixes {
		err := scanPrefix(tx, makeAdjacencyPrefix(p, id), false, func(suffix []byte, _ *badger.Item) error {
			result = append(result, core.NodeID(suffix))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
