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

// Package neo4j implements the lexis graph store on a Neo4j server.
//
// Statute units are stored as nodes carrying the configured label, containment
// edges as relationships of the configured type, and both embeddings live in
// native vector indexes. Domain records are stored as :Domain nodes.
package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	neo "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

const connectAttempts = 5

// GraphStore implements storage.Store on Neo4j.
type GraphStore struct {
	config  *Config
	driver  neo.DriverWithContext
	queries queries
	logger  *slog.Logger
}

var _ storage.Store = (*GraphStore)(nil)

// Open connects to Neo4j, retrying with exponential backoff until the
// server answers or the attempts are exhausted.
func Open(ctx context.Context, config *Config) (*GraphStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	auth := neo.BasicAuth(config.Username, config.Password, "")
	driverConfig := func(c *neo.Config) {
		c.MaxConnectionPoolSize = config.MaxConnectionPoolSize
		c.ConnectionAcquisitionTimeout = config.ConnectionTimeout
		c.MaxTransactionRetryTime = config.MaxTransactionRetryTime
	}

	logger := slog.Default().With("component", "neo4j")
	var lastErr error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < connectAttempts; attempt++ {
		driver, err := neo.NewDriverWithContext(config.URI, auth, driverConfig)
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				return &GraphStore{
					config:  config,
					driver:  driver,
					queries: buildQueries(config),
					logger:  logger,
				}, nil
			}
			driver.Close(ctx)
		}
		lastErr = err
		logger.Warn("neo4j connection attempt failed", "attempt", attempt+1, "err", err)

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", storage.ErrStorageClosed, ctx.Err())
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", connectAttempts, lastErr)
}

// EnsureSchema creates the id constraint and both vector indexes if they are missing.
func (s *GraphStore) EnsureSchema(ctx context.Context, nodeDimensions, edgeDimensions int) error {
	for _, statement := range s.queries.schema(nodeDimensions, edgeDimensions) {
		if err := s.write(ctx, statement, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the driver.
func (s *GraphStore) Close() error {
	return s.driver.Close(context.Background())
}

// Ping verifies the server is reachable.
func (s *GraphStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// PutNodes merges nodes by id.
func (s *GraphStore) PutNodes(ctx context.Context, nodes ...*core.Node) error {
	now := time.Now().UTC()
	rows := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		if err := core.ValidateNode(node); err != nil {
			return err
		}
		if node.InsertedAt.IsZero() {
			node.InsertedAt = now
		}
		node.UpdatedAt = now
		rows = append(rows, nodeProperties(node))
	}
	return s.write(ctx, s.queries.putNodes, map[string]any{"rows": rows})
}

// GetNode retrieves a single node by ID.
func (s *GraphStore) GetNode(ctx context.Context, id core.NodeID) (*core.Node, error) {
	nodes, err := s.GetNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, storage.ErrNotFound
	}
	return nodes[0], nil
}

// GetNodes retrieves nodes in the order requested, skipping missing ids.
func (s *GraphStore) GetNodes(ctx context.Context, ids ...core.NodeID) ([]*core.Node, error) {
	records, err := s.read(ctx, s.queries.getNodes, map[string]any{"ids": idStrings(ids)})
	if err != nil {
		return nil, err
	}
	byID := make(map[core.NodeID]*core.Node, len(records))
	for _, record := range records {
		node, err := nodeFromRecord(record)
		if err != nil {
			return nil, err
		}
		byID[node.ID] = node
	}
	result := make([]*core.Node, 0, len(byID))
	for _, id := range ids {
		if node, ok := byID[id]; ok {
			result = append(result, node)
		}
	}
	return result, nil
}

// ListNodes returns nodes ordered by id.
func (s *GraphStore) ListNodes(ctx context.Context, leafOnly bool) ([]*core.Node, error) {
	records, err := s.read(ctx, s.queries.listNodes, map[string]any{"leafOnly": leafOnly})
	if err != nil {
		return nil, err
	}
	result := make([]*core.Node, 0, len(records))
	for _, record := range records {
		node, err := nodeFromRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, node)
	}
	return result, nil
}

// DeleteNodes detaches and deletes nodes.
func (s *GraphStore) DeleteNodes(ctx context.Context, ids ...core.NodeID) error {
	return s.write(ctx, s.queries.deleteNodes, map[string]any{"ids": idStrings(ids)})
}

// SetNodeDomain records the owning domain on each node.
func (s *GraphStore) SetNodeDomain(ctx context.Context, domainID core.DomainID, ids ...core.NodeID) error {
	records, err := s.read(ctx, s.queries.setNodeDomain, map[string]any{
		"ids":    idStrings(ids),
		"domain": string(domainID),
		"now":    time.Now().UTC().UnixMicro(),
	}, true)
	if err != nil {
		return err
	}
	updated := int64(0)
	if len(records) == 1 {
		updated = int64Value(records[0], "updated")
	}
	if updated != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d nodes updated", storage.ErrNotFound, updated, len(ids))
	}
	return nil
}

// PutEdges merges containment edges between existing nodes.
func (s *GraphStore) PutEdges(ctx context.Context, edges ...*core.ContainmentEdge) error {
	now := time.Now().UTC()
	rows := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		if err := core.ValidateEdge(edge); err != nil {
			return err
		}
		edge.ID = core.EdgeID(edge.Source, edge.Target)
		if edge.InsertedAt.IsZero() {
			edge.InsertedAt = now
		}
		if edge.ContentType == "" {
			edge.ContentType = core.ContentTypeGeneral
		}
		rows = append(rows, edgeProperties(edge))
	}
	return s.write(ctx, s.queries.putEdges, map[string]any{"rows": rows})
}

// GetEdge retrieves the edge source -> target.
func (s *GraphStore) GetEdge(ctx context.Context, source, target core.NodeID) (*core.ContainmentEdge, error) {
	records, err := s.read(ctx, s.queries.getEdge, map[string]any{
		"source": string(source),
		"target": string(target),
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return edgeFromRecord(records[0])
}

// ListEdges returns every edge ordered by source then target.
func (s *GraphStore) ListEdges(ctx context.Context) ([]*core.ContainmentEdge, error) {
	records, err := s.read(ctx, s.queries.listEdges, nil)
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(records)
}

// VectorSearchNodes queries the node index. With a member restriction the
// similarity is computed exactly over the members instead, so that small
// domains are not starved by a global top-k.
func (s *GraphStore) VectorSearchNodes(ctx context.Context, vector []float32, topK int, allowed storage.NodeSet) ([]core.ScoredNode, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	query, params := s.queries.nodeIndex, map[string]any{
		"index":  s.config.NodeIndex,
		"k":      topK,
		"vector": float64s(vector),
	}
	if allowed != nil {
		query = s.queries.nodeSimilarity
		params["ids"] = idStrings(allowed.IDs())
	}

	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	results := make([]core.ScoredNode, 0, len(records))
	for _, record := range records {
		results = append(results, core.ScoredNode{
			NodeID: core.NodeID(stringValue(record, "id")),
			Score:  cosineFromScore(float64Value(record, "score")),
		})
	}
	return results, nil
}

// VectorSearchEdges queries the relationship index, restricted to edges with
// an endpoint in allowed when given.
func (s *GraphStore) VectorSearchEdges(ctx context.Context, vector []float32, topK int, allowed storage.NodeSet) ([]core.ScoredEdge, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	query, params := s.queries.edgeIndex, map[string]any{
		"index":  s.config.EdgeIndex,
		"k":      topK,
		"vector": float64s(vector),
	}
	if allowed != nil {
		query = s.queries.edgeSimilarity
		params["ids"] = idStrings(allowed.IDs())
	}

	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	results := make([]core.ScoredEdge, 0, len(records))
	for _, record := range records {
		results = append(results, core.ScoredEdge{
			Source:      core.NodeID(stringValue(record, "source")),
			Target:      core.NodeID(stringValue(record, "target")),
			ContentType: core.ContentType(stringValue(record, "content_type")),
			Score:       cosineFromScore(float64Value(record, "score")),
		})
	}
	return results, nil
}

// GetNeighbors returns adjacent node ids sorted ascending.
func (s *GraphStore) GetNeighbors(ctx context.Context, id core.NodeID, direction storage.Direction) ([]core.NodeID, error) {
	query, ok := s.queries.neighbors[direction]
	if !ok {
		return nil, fmt.Errorf("%w: direction %d", storage.ErrInvalidQuery, direction)
	}
	records, err := s.read(ctx, query, map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	result := make([]core.NodeID, 0, len(records))
	for _, record := range records {
		result = append(result, core.NodeID(stringValue(record, "id")))
	}
	return result, nil
}

// GetPath returns the shortest undirected containment path between a and b.
func (s *GraphStore) GetPath(ctx context.Context, a, b core.NodeID) ([]*core.ContainmentEdge, error) {
	if a == b {
		return nil, nil
	}
	records, err := s.read(ctx, s.queries.path, map[string]any{"a": string(a), "b": string(b)})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no path from %s to %s", storage.ErrNotFound, a, b)
	}
	return edgesFromRecords(records)
}

// SaveDomains merges domain records by id.
func (s *GraphStore) SaveDomains(ctx context.Context, domains ...*core.Domain) error {
	rows := make([]map[string]any, 0, len(domains))
	for _, domain := range domains {
		rows = append(rows, domainProperties(domain))
	}
	return s.write(ctx, s.queries.saveDomains, map[string]any{"rows": rows})
}

// DeleteDomains removes domain records by id.
func (s *GraphStore) DeleteDomains(ctx context.Context, ids ...core.DomainID) error {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return s.write(ctx, s.queries.deleteDomains, map[string]any{"ids": names})
}

// LoadDomains returns every persisted domain ordered by id.
func (s *GraphStore) LoadDomains(ctx context.Context) ([]*core.Domain, error) {
	records, err := s.read(ctx, s.queries.loadDomains, nil)
	if err != nil {
		return nil, err
	}
	result := make([]*core.Domain, 0, len(records))
	for _, record := range records {
		domain, err := domainFromRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, domain)
	}
	return result, nil
}

// read runs cypher in a managed transaction and collects every record.
// Pass write=true for statements that modify the graph but also return rows.
func (s *GraphStore) read(ctx context.Context, cypher string, params map[string]any, write ...bool) ([]*neo.Record, error) {
	session := s.driver.NewSession(ctx, neo.SessionConfig{
		DatabaseName: s.config.Database,
	})
	defer session.Close(ctx)

	work := func(tx neo.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	}

	var (
		out any
		err error
	)
	if len(write) > 0 && write[0] {
		out, err = session.ExecuteWrite(ctx, work)
	} else {
		out, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		s.logger.Debug("cypher failed", "err", err)
		return nil, err
	}
	return out.([]*neo.Record), nil
}

// write runs cypher in a write transaction and discards the result.
func (s *GraphStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo.SessionConfig{
		DatabaseName: s.config.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.Debug("cypher failed", "err", err)
	}
	return err
}

// cosineFromScore maps Neo4j's [0, 1] cosine similarity score back to the
// [-1, 1] cosine the rest of the system works with.
func cosineFromScore(score float64) float32 {
	return float32(math.Max(-1, math.Min(1, 2*score-1)))
}
