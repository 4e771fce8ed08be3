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

package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string `yaml:"embedding_host"`

	// LabelerHost is the base URL for the chat model that names domains.
	LabelerHost string `yaml:"labeler_host"`

	// NodeModel embeds the text of individual statute units.
	// Example: "nomic-embed-text", "text-embedding-3-small"
	NodeModel string `yaml:"node_model"`

	// RelationshipModel embeds the context text of containment edges.
	// Example: "text-embedding-3-large"
	RelationshipModel string `yaml:"relationship_model"`

	// LabelerModel is the chat model used to name new domains.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	LabelerModel string `yaml:"labeler_model"`

	// NodeDimensions is the length of vectors produced by NodeModel.
	// Default: 768
	NodeDimensions int `yaml:"node_dimensions"`

	// RelationshipDimensions is the length of vectors produced by RelationshipModel.
	// Default: 3072
	RelationshipDimensions int `yaml:"relationship_dimensions"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithLabelerHost sets the labeler service host URL.
func WithLabelerHost(host string) ConfigOption {
	return func(c *Config) {
		c.LabelerHost = host
	}
}

// WithHost sets both embedding and labeler hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.LabelerHost = host
	}
}

// WithNodeModel sets the node embedding model and its output dimension.
func WithNodeModel(model string, dimensions int) ConfigOption {
	return func(c *Config) {
		c.NodeModel = model
		c.NodeDimensions = dimensions
	}
}

// WithRelationshipModel sets the relationship embedding model and its output dimension.
func WithRelationshipModel(model string, dimensions int) ConfigOption {
	return func(c *Config) {
		c.RelationshipModel = model
		c.RelationshipDimensions = dimensions
	}
}

// WithLabelerModel sets the domain labeling model identifier.
func WithLabelerModel(model string) ConfigOption {
	return func(c *Config) {
		c.LabelerModel = model
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, embeddings and labeling use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:          defaultHost,
		LabelerHost:            defaultHost,
		NodeModel:              "nomic-embed-text",
		RelationshipModel:      "text-embedding-3-large",
		LabelerModel:           "qwen2.5:3b",
		NodeDimensions:         768,
		RelationshipDimensions: 3072,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithNodeModel("nomic-embed-text", 768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.LabelerHost = normalizeHost(c.LabelerHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.LabelerHost == "" {
		return errors.New("ai config: LabelerHost is required")
	}
	if c.NodeModel == "" {
		return errors.New("ai config: NodeModel is required")
	}
	if c.RelationshipModel == "" {
		return errors.New("ai config: RelationshipModel is required")
	}
	if c.LabelerModel == "" {
		return errors.New("ai config: LabelerModel is required")
	}
	if c.NodeDimensions <= 0 || c.RelationshipDimensions <= 0 {
		return errors.New("ai config: embedding dimensions must be positive")
	}
	return nil
}
