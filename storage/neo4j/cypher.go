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

package neo4j

import (
	"fmt"
	"strings"
	"time"

	neo "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// maxPathLength bounds shortestPath expansion.
const maxPathLength = 32

const domainLabel = "Domain"

// queries holds every Cypher statement, rendered once from the configured
// label and relationship type.
type queries struct {
	label    string
	edgeType string
	config   *Config

	putNodes      string
	getNodes      string
	listNodes     string
	deleteNodes   string
	setNodeDomain string

	putEdges  string
	getEdge   string
	listEdges string

	nodeIndex      string
	nodeSimilarity string
	edgeIndex      string
	edgeSimilarity string

	neighbors map[storage.Direction]string
	path      string

	saveDomains   string
	deleteDomains string
	loadDomains   string
}

const nodeColumns = `n.id AS id, n.path AS path, n.title AS title, n.content AS content,
	n.embedding AS embedding, n.domain_id AS domain_id, n.leaf AS leaf,
	n.inserted_at AS inserted_at, n.updated_at AS updated_at`

const edgeColumns = `s.id AS source, t.id AS target, r.id AS id, r.context AS context,
	r.embedding AS embedding, r.content_type AS content_type, r.inserted_at AS inserted_at`

func buildQueries(config *Config) queries {
	// r substitutes the node label (:L) and edge type (:T) placeholders.
	r := strings.NewReplacer(":L", ":"+config.NodeLabel, ":T", ":"+config.EdgeType, ":D", ":"+domainLabel)

	return queries{
		label:    config.NodeLabel,
		edgeType: config.EdgeType,
		config:   config,

		putNodes: r.Replace(`UNWIND $rows AS row
			MERGE (n:L {id: row.id})
			ON CREATE SET n.inserted_at = row.inserted_at
			SET n.path = row.path, n.title = row.title, n.content = row.content,
				n.embedding = row.embedding, n.domain_id = row.domain_id,
				n.leaf = row.leaf, n.updated_at = row.updated_at`),
		getNodes: r.Replace(`MATCH (n:L) WHERE n.id IN $ids RETURN ` + nodeColumns),
		listNodes: r.Replace(`MATCH (n:L) WHERE NOT $leafOnly OR n.leaf
			RETURN ` + nodeColumns + ` ORDER BY id`),
		deleteNodes: r.Replace(`MATCH (n:L) WHERE n.id IN $ids DETACH DELETE n`),
		setNodeDomain: r.Replace(`UNWIND $ids AS nid
			MATCH (n:L {id: nid})
			SET n.domain_id = $domain, n.updated_at = $now
			RETURN count(n) AS updated`),

		putEdges: r.Replace(`UNWIND $rows AS row
			MATCH (s:L {id: row.source}), (t:L {id: row.target})
			MERGE (s)-[r:T]->(t)
			SET r.id = row.id, r.context = row.context, r.embedding = row.embedding,
				r.content_type = row.content_type,
				r.inserted_at = coalesce(r.inserted_at, row.inserted_at)`),
		getEdge: r.Replace(`MATCH (s:L {id: $source})-[r:T]->(t:L {id: $target})
			RETURN ` + edgeColumns),
		listEdges: r.Replace(`MATCH (s:L)-[r:T]->(t:L)
			RETURN ` + edgeColumns + ` ORDER BY source, target`),

		nodeIndex: `CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node, score
			RETURN node.id AS id, score ORDER BY score DESC, id`,
		nodeSimilarity: r.Replace(`MATCH (n:L) WHERE n.id IN $ids AND n.embedding IS NOT NULL
			WITH n.id AS id, vector.similarity.cosine(n.embedding, $vector) AS score
			RETURN id, score ORDER BY score DESC, id LIMIT $k`),
		edgeIndex: `CALL db.index.vector.queryRelationships($index, $k, $vector) YIELD relationship, score
			RETURN startNode(relationship).id AS source, endNode(relationship).id AS target,
				relationship.content_type AS content_type, score
			ORDER BY score DESC, source, target`,
		edgeSimilarity: r.Replace(`MATCH (s:L)-[r:T]->(t:L)
			WHERE (s.id IN $ids OR t.id IN $ids) AND r.embedding IS NOT NULL
			WITH s.id AS source, t.id AS target, r.content_type AS content_type,
				vector.similarity.cosine(r.embedding, $vector) AS score
			RETURN source, target, content_type, score
			ORDER BY score DESC, source, target LIMIT $k`),

		neighbors: map[storage.Direction]string{
			storage.DirectionIn:   r.Replace(`MATCH (m:L)-[:T]->(n:L {id: $id}) RETURN DISTINCT m.id AS id ORDER BY id`),
			storage.DirectionOut:  r.Replace(`MATCH (n:L {id: $id})-[:T]->(m:L) RETURN DISTINCT m.id AS id ORDER BY id`),
			storage.DirectionBoth: r.Replace(`MATCH (n:L {id: $id})-[:T]-(m:L) RETURN DISTINCT m.id AS id ORDER BY id`),
		},
		path: r.Replace(fmt.Sprintf(`MATCH (a:L {id: $a}), (b:L {id: $b})
			MATCH p = shortestPath((a)-[:T*..%d]-(b))
			WITH relationships(p) AS rels
			UNWIND range(0, size(rels) - 1) AS i
			WITH rels[i] AS r, i
			WITH startNode(r) AS s, r, endNode(r) AS t, i
			RETURN `+edgeColumns+` ORDER BY i`, maxPathLength)),

		saveDomains: r.Replace(`UNWIND $rows AS row
			MERGE (d:D {id: row.id})
			SET d.name = row.name, d.centroid = row.centroid, d.members = row.members,
				d.neighbors = row.neighbors, d.created_at = row.created_at,
				d.updated_at = row.updated_at`),
		deleteDomains: r.Replace(`MATCH (d:D) WHERE d.id IN $ids DELETE d`),
		loadDomains: r.Replace(`MATCH (d:D)
			RETURN d.id AS id, d.name AS name, d.centroid AS centroid, d.members AS members,
				d.neighbors AS neighbors, d.created_at AS created_at, d.updated_at AS updated_at
			ORDER BY id`),
	}
}

// schema returns the statements that create constraints and vector indexes.
func (q queries) schema(nodeDimensions, edgeDimensions int) []string {
	return []string{
		fmt.Sprintf("CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
			strings.ToLower(q.label), q.label),
		fmt.Sprintf("CREATE CONSTRAINT domain_id IF NOT EXISTS FOR (d:%s) REQUIRE d.id IS UNIQUE", domainLabel),
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			q.config.NodeIndex, q.label, nodeDimensions),
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR ()-[r:%s]-() ON (r.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			q.config.EdgeIndex, q.edgeType, edgeDimensions),
	}
}

func nodeProperties(node *core.Node) map[string]any {
	return map[string]any{
		"id":          string(node.ID),
		"path":        node.Path,
		"title":       node.Title,
		"content":     node.Content,
		"embedding":   float64s(node.Vector),
		"domain_id":   string(node.DomainID),
		"leaf":        node.Leaf,
		"inserted_at": micros(node.InsertedAt),
		"updated_at":  micros(node.UpdatedAt),
	}
}

func nodeFromRecord(record *neo.Record) (*core.Node, error) {
	id := stringValue(record, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: node record without id", storage.ErrSerializationFailed)
	}
	return &core.Node{
		ID:         core.NodeID(id),
		Path:       stringValue(record, "path"),
		Title:      stringValue(record, "title"),
		Content:    stringValue(record, "content"),
		Vector:     float32Values(record, "embedding"),
		DomainID:   core.DomainID(stringValue(record, "domain_id")),
		Leaf:       boolValue(record, "leaf"),
		InsertedAt: timeValue(record, "inserted_at"),
		UpdatedAt:  timeValue(record, "updated_at"),
	}, nil
}

func edgeProperties(edge *core.ContainmentEdge) map[string]any {
	return map[string]any{
		"id":           int64(edge.ID),
		"source":       string(edge.Source),
		"target":       string(edge.Target),
		"context":      edge.Context,
		"embedding":    float64s(edge.Vector),
		"content_type": string(edge.ContentType),
		"inserted_at":  micros(edge.InsertedAt),
	}
}

func edgeFromRecord(record *neo.Record) (*core.ContainmentEdge, error) {
	source, target := stringValue(record, "source"), stringValue(record, "target")
	if source == "" || target == "" {
		return nil, fmt.Errorf("%w: edge record without endpoints", storage.ErrSerializationFailed)
	}
	return &core.ContainmentEdge{
		ID:          core.ID(int64Value(record, "id")),
		Source:      core.NodeID(source),
		Target:      core.NodeID(target),
		Context:     stringValue(record, "context"),
		Vector:      float32Values(record, "embedding"),
		ContentType: core.ContentType(stringValue(record, "content_type")),
		InsertedAt:  timeValue(record, "inserted_at"),
	}, nil
}

func edgesFromRecords(records []*neo.Record) ([]*core.ContainmentEdge, error) {
	result := make([]*core.ContainmentEdge, 0, len(records))
	for _, record := range records {
		edge, err := edgeFromRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, edge)
	}
	return result, nil
}

func domainProperties(domain *core.Domain) map[string]any {
	members := make([]string, len(domain.Members))
	for i, m := range domain.Members {
		members[i] = string(m)
	}
	neighbors := make([]string, len(domain.Neighbors))
	for i, n := range domain.Neighbors {
		neighbors[i] = string(n)
	}
	return map[string]any{
		"id":         string(domain.ID),
		"name":       domain.Name,
		"centroid":   float64s(domain.Centroid),
		"members":    members,
		"neighbors":  neighbors,
		"created_at": micros(domain.CreatedAt),
		"updated_at": micros(domain.UpdatedAt),
	}
}

func domainFromRecord(record *neo.Record) (*core.Domain, error) {
	id := stringValue(record, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: domain record without id", storage.ErrSerializationFailed)
	}
	domain := &core.Domain{
		ID:        core.DomainID(id),
		Name:      stringValue(record, "name"),
		Centroid:  float32Values(record, "centroid"),
		CreatedAt: timeValue(record, "created_at"),
		UpdatedAt: timeValue(record, "updated_at"),
	}
	for _, m := range stringValues(record, "members") {
		domain.Members = append(domain.Members, core.NodeID(m))
	}
	for _, n := range stringValues(record, "neighbors") {
		domain.Neighbors = append(domain.Neighbors, core.DomainID(n))
	}
	return domain, nil
}

func idStrings(ids []core.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// float64s converts a vector to the list type the driver sends. Empty
// vectors become nil so that the property is removed.
func float64s(v []float32) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func value(record *neo.Record, key string) any {
	v, _ := record.Get(key)
	return v
}

func stringValue(record *neo.Record, key string) string {
	s, _ := value(record, key).(string)
	return s
}

func boolValue(record *neo.Record, key string) bool {
	b, _ := value(record, key).(bool)
	return b
}

func int64Value(record *neo.Record, key string) int64 {
	switch v := value(record, key).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func float64Value(record *neo.Record, key string) float64 {
	switch v := value(record, key).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func timeValue(record *neo.Record, key string) time.Time {
	us := int64Value(record, key)
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// float32Values reads a list property. The driver returns lists as []any.
func float32Values(record *neo.Record, key string) []float32 {
	switch v := value(record, key).(type) {
	case []any:
		out := make([]float32, 0, len(v))
		for _, item := range v {
			switch f := item.(type) {
			case float64:
				out = append(out, float32(f))
			case int64:
				out = append(out, float32(f))
			}
		}
		return out
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	default:
		return nil
	}
}

func stringValues(record *neo.Record, key string) []string {
	switch v := value(record, key).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}
