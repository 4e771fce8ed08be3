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
	"errors"
	"regexp"
	"time"
)

// Config holds connection and schema settings for the Neo4j graph store.
type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// NodeLabel is the label carried by every statute unit.
	NodeLabel string `yaml:"node_label"`
	// EdgeType is the relationship type of containment edges.
	EdgeType string `yaml:"edge_type"`
	// NodeIndex is the vector index over node embeddings.
	NodeIndex string `yaml:"node_index"`
	// EdgeIndex is the vector index over relationship embeddings.
	EdgeIndex string `yaml:"edge_index"`

	MaxConnectionPoolSize   int           `yaml:"max_connection_pool_size"`
	ConnectionTimeout       time.Duration `yaml:"connection_timeout"`
	MaxTransactionRetryTime time.Duration `yaml:"max_transaction_retry_time"`
}

// DefaultConfig returns settings for a local Neo4j instance.
func DefaultConfig() *Config {
	return &Config{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		Database:                "neo4j",
		NodeLabel:               "LawUnit",
		EdgeType:                "CONTAINS",
		NodeIndex:               "lawunit_embedding",
		EdgeIndex:               "contains_embedding",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 15 * time.Second,
	}
}

// identifier matches label, type and index names that are safe to splice into Cypher.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.URI == "" {
		return errors.New("neo4j config: URI is required")
	}
	if !identifier.MatchString(c.NodeLabel) {
		return errors.New("neo4j config: NodeLabel must be a plain identifier")
	}
	if !identifier.MatchString(c.EdgeType) {
		return errors.New("neo4j config: EdgeType must be a plain identifier")
	}
	if !identifier.MatchString(c.NodeIndex) || !identifier.MatchString(c.EdgeIndex) {
		return errors.New("neo4j config: NodeIndex and EdgeIndex must be plain identifiers")
	}
	return nil
}
