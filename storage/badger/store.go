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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// domainUpdateChunk bounds how many nodes a single SetNodeDomain transaction touches.
const domainUpdateChunk = 500

// GraphStore implements storage.Store on BadgerDB.
type GraphStore struct {
	backend *Backend
}

var _ storage.Store = (*GraphStore)(nil)

// NewGraphStore creates a graph store on an open backend.
// The store takes ownership of the backend and closes it on Close.
func NewGraphStore(backend *Backend) (*GraphStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &GraphStore{
		backend: backend,
	}, nil
}

// Open opens (creating if necessary) a persistent graph store at path.
func Open(path string) (*GraphStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewGraphStore(backend)
}

// Close closes the underlying backend.
func (s *GraphStore) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// Ping verifies the database is open.
func (s *GraphStore) Ping(ctx context.Context) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// PutNodes inserts or replaces nodes.
func (s *GraphStore) PutNodes(ctx context.Context, nodes ...*core.Node) error {
	for _, node := range nodes {
		if err := core.ValidateNode(node); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	return s.backend.WithBatch(func(wb *badger.WriteBatch) error {
		for _, node := range nodes {
			if node.InsertedAt.IsZero() {
				node.InsertedAt = now
			}
			node.UpdatedAt = now
			if err := wb.Set(makeNodeKey(node.ID), storage.MarshalNode(node)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode retrieves a single node by ID.
func (s *GraphStore) GetNode(ctx context.Context, id core.NodeID) (*core.Node, error) {
	var result *core.Node
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readNode(tx, id)
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

// GetNodes retrieves multiple nodes by their IDs.
func (s *GraphStore) GetNodes(ctx context.Context, ids ...core.NodeID) ([]*core.Node, error) {
	result := make([]*core.Node, 0, len(ids))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			node, err := readNode(tx, id)
			if err != nil {
				return err
			}
			if node != nil {
				result = append(result, node)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListNodes returns nodes ordered by id.
func (s *GraphStore) ListNodes(ctx context.Context, leafOnly bool) ([]*core.Node, error) {
	var result []*core.Node
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(nodePrefix), true, func(_ []byte, item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				node, err := storage.UnmarshalNode(val)
				if err != nil {
					return err
				}
				if !leafOnly || node.Leaf {
					result = append(result, node)
				}
				return nil
			})
		})
	}, false)
	return result, err
}

// DeleteNodes removes nodes along with every edge that touches them.
func (s *GraphStore) DeleteNodes(ctx context.Context, ids ...core.NodeID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			var doomed [][]byte

			// Outgoing edges: eout:id\x00child plus the mirrored ein:child\x00id
			err := scanPrefix(tx, makeAdjacencyPrefix(childPrefix, id), false, func(suffix []byte, _ *badger.Item) error {
				child := core.NodeID(suffix)
				doomed = append(doomed,
					makeChildKey(id, child),
					makeParentKey(child, id),
					makeEdgeKey(core.EdgeID(id, child)))
				return nil
			})
			if err != nil {
				return err
			}

			err = scanPrefix(tx, makeAdjacencyPrefix(parentPrefix, id), false, func(suffix []byte, _ *badger.Item) error {
				parent := core.NodeID(suffix)
				doomed = append(doomed,
					makeParentKey(id, parent),
					makeChildKey(parent, id),
					makeEdgeKey(core.EdgeID(parent, id)))
				return nil
			})
			if err != nil {
				return err
			}

			doomed = append(doomed, makeNodeKey(id))
			for _, key := range doomed {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// SetNodeDomain records the owning domain on each node.
func (s *GraphStore) SetNodeDomain(ctx context.Context, domainID core.DomainID, ids ...core.NodeID) error {
	for start := 0; start < len(ids); start += domainUpdateChunk {
		chunk := ids[start:min(start+domainUpdateChunk, len(ids))]
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			now := time.Now().UTC()
			for _, id := range chunk {
				node, err := readNode(tx, id)
				if err != nil {
					return err
				}
				if node == nil {
					return fmt.Errorf("%w: node %s", storage.ErrNotFound, id)
				}
				node.DomainID = domainID
				node.UpdatedAt = now
				if err := tx.Set(makeNodeKey(id), storage.MarshalNode(node)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveDomains inserts or replaces domain records.
func (s *GraphStore) SaveDomains(ctx context.Context, domains ...*core.Domain) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, domain := range domains {
			if err := tx.Set(makeDomainKey(domain.ID), storage.MarshalDomain(domain)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDomains removes domain records by id.
func (s *GraphStore) DeleteDomains(ctx context.Context, ids ...core.DomainID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeDomainKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// LoadDomains returns every persisted domain ordered by id.
func (s *GraphStore) LoadDomains(ctx context.Context) ([]*core.Domain, error) {
	var result []*core.Domain
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(domainPrefix), true, func(_ []byte, item *badger.Item) error {
			return item.Value(func(val []byte) error {
				domain, err := storage.UnmarshalDomain(val)
				if err != nil {
					return err
				}
				result = append(result, domain)
				return nil
			})
		})
	}, false)
	return result, err
}

// readNode reads a node inside tx. Returns nil without error if it doesn't exist.
func readNode(tx *badger.Txn, id core.NodeID) (*core.Node, error) {
	item, err := tx.Get(makeNodeKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var node *core.Node
	err = item.Value(func(val []byte) error {
		node, err = storage.UnmarshalNode(val)
		return err
	})
	return node, err
}
