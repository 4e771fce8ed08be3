package lexis

import (
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/cluster"
	"github.com/poiesic/lexis/manager"
	"github.com/poiesic/lexis/reembed"
	"github.com/poiesic/lexis/registry"
	"github.com/poiesic/lexis/search"
	"github.com/poiesic/lexis/storage/neo4j"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreBadger = "badger"
	StoreMemory = "memory"
	StoreNeo4j  = "neo4j"
)

// Config is the complete engine configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Neo4j     *neo4j.Config   `yaml:"neo4j"`
	AI        *ai.Config      `yaml:"ai"`
	Cluster   cluster.Config  `yaml:"cluster"`
	Search    search.Config   `yaml:"search"`
	Registry  registry.Config `yaml:"registry"`
	Manager   manager.Config  `yaml:"manager"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Reembed   *reembed.Config `yaml:"reembed"`
}

// StoreConfig selects the graph store backend.
type StoreConfig struct {
	// Backend is one of "badger", "memory" or "neo4j". Default: badger
	Backend string `yaml:"backend"`
	// Path is the badger database directory.
	Path string `yaml:"path"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	// PoolSize is the number of embedding workers. Zero picks a default
	// from the CPU count.
	PoolSize int `yaml:"pool_size"`
	// BatchSize is the number of texts per embedding request. Default: 32
	BatchSize int `yaml:"batch_size"`
}

// DefaultConfig returns the default configuration with a badger store in
// ./lexis.db.
func DefaultConfig() *Config {
	return &Config{
		Store:     StoreConfig{Backend: StoreBadger, Path: "lexis.db"},
		Neo4j:     neo4j.DefaultConfig(),
		AI:        ai.DefaultConfig(),
		Cluster:   cluster.DefaultConfig(),
		Search:    search.DefaultConfig(),
		Registry:  registry.DefaultConfig(),
		Manager:   manager.DefaultConfig(),
		Ingestion: IngestionConfig{BatchSize: 32},
		Reembed:   reembed.DefaultConfig(),
	}
}

// LoadConfig reads a YAML configuration file over the defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBadger:
		if c.Store.Path == "" {
			return errors.New("store config: Path is required for the badger backend")
		}
	case StoreMemory:
	case StoreNeo4j:
		if c.Neo4j == nil {
			return errors.New("store config: neo4j section is required for the neo4j backend")
		}
		if err := c.Neo4j.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store config: unknown backend %q", c.Store.Backend)
	}

	if c.AI == nil {
		return errors.New("ai config is required")
	}
	return errors.Join(
		c.AI.Validate(),
		c.Cluster.Validate(),
		c.Search.Validate(),
		c.Registry.Validate(),
		c.Manager.Validate(),
	)
}
