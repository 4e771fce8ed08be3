package search

import (
	"errors"

	"github.com/poiesic/lexis/expansion"
)

// Config tunes a domain agent's pipeline.
type Config struct {
	// VectorTopN is the number of node index hits kept. Default: 10
	VectorTopN int `yaml:"vector_top_n"`
	// RelationshipTopN is the number of relationship index hits kept. Default: 10
	RelationshipTopN int `yaml:"relationship_top_n"`
	// RNE tunes range network expansion. RNE.Threshold also selects the
	// expansion seeds: vector and relationship candidates scoring at least
	// this much.
	RNE expansion.RNEConfig `yaml:"rne"`
	// INE tunes iterative neighbor expansion.
	INE expansion.INEConfig `yaml:"ine"`
	// SnippetLength is the number of runes of content kept in a result. Default: 200
	SnippetLength int `yaml:"snippet_length"`
}

// DefaultConfig returns the default agent tuning.
func DefaultConfig() Config {
	return Config{
		VectorTopN:       10,
		RelationshipTopN: 10,
		RNE:              expansion.DefaultRNEConfig(),
		INE:              expansion.DefaultINEConfig(),
		SnippetLength:    200,
	}
}

// Validate checks the tuning.
func (c Config) Validate() error {
	if c.VectorTopN < 1 || c.RelationshipTopN < 1 {
		return errors.New("search config: top-N values must be positive")
	}
	if c.SnippetLength < 1 {
		return errors.New("search config: SnippetLength must be positive")
	}
	if err := c.RNE.Validate(); err != nil {
		return err
	}
	return c.INE.Validate()
}
