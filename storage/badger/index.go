package badger

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// VectorSearchNodes scores nodes against vector by cosine similarity.
// With a restriction set only those nodes are read; otherwise every node is scanned.
func (s *GraphStore) VectorSearchNodes(ctx context.Context, vector []float32, topK int, allowed storage.NodeSet) ([]core.ScoredNode, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}

	var results []core.ScoredNode
	score := func(node *core.Node) {
		if len(node.Vector) == 0 {
			return
		}
		results = append(results, core.ScoredNode{
			NodeID: node.ID,
			Score:  core.Cosine(vector, node.Vector),
		})
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if allowed != nil {
			for id := range allowed {
				node, err := readNode(tx, id)
				if err != nil {
					return err
				}
				if node != nil {
					score(node)
				}
			}
			return nil
		}
		return scanPrefix(tx, []byte(nodePrefix), true, func(_ []byte, item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				node, err := storage.UnmarshalNode(val)
				if err != nil {
					return err
				}
				score(node)
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.ScoredNode) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.NodeID, b.NodeID))
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// VectorSearchEdges scores edges with at least one endpoint in allowed.
// Content type is carried through but never used to filter.
func (s *GraphStore) VectorSearchEdges(ctx context.Context, vector []float32, topK int, allowed storage.NodeSet) ([]core.ScoredEdge, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}

	var results []core.ScoredEdge
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(edgePrefix), true, func(_ []byte, item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				edge, err := storage.UnmarshalEdge(val)
				if err != nil {
					return err
				}
				if len(edge.Vector) == 0 {
					return nil
				}
				if !allowed.Contains(edge.Source) && !allowed.Contains(edge.Target) {
					return nil
				}
				results = append(results, core.ScoredEdge{
					Source:      edge.Source,
					Target:      edge.Target,
					ContentType: edge.ContentType,
					Score:       core.Cosine(vector, edge.Vector),
				})
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.ScoredEdge) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Target, b.Target))
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
