package manager

import "errors"

// Config tunes routing and collaboration.
type Config struct {
	// CollaborationThreshold is the confidence below which neighbor domains
	// are consulted. Default: 0.6
	CollaborationThreshold float32 `yaml:"collaboration_threshold"`
	// ConfidenceTopK is the number of top primary scores averaged into the
	// confidence. Default: 3
	ConfidenceTopK int `yaml:"confidence_top_k"`
	// DefaultLimit applies when a request does not set one. Default: 10
	DefaultLimit int `yaml:"default_limit"`
	// MaxLimit caps the requested limit. Default: 100
	MaxLimit int `yaml:"max_limit"`
	// PoolSize bounds concurrent neighbor searches across all requests. Default: 16
	PoolSize int `yaml:"pool_size"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		CollaborationThreshold: 0.6,
		ConfidenceTopK:         3,
		DefaultLimit:           10,
		MaxLimit:               100,
		PoolSize:               16,
	}
}

// Validate checks the tuning.
func (c Config) Validate() error {
	if c.CollaborationThreshold < 0 || c.CollaborationThreshold > 1 {
		return errors.New("manager config: CollaborationThreshold must be in [0, 1]")
	}
	if c.ConfidenceTopK < 1 {
		return errors.New("manager config: ConfidenceTopK must be positive")
	}
	if c.DefaultLimit < 1 || c.MaxLimit < c.DefaultLimit {
		return errors.New("manager config: need 1 <= DefaultLimit <= MaxLimit")
	}
	if c.PoolSize < 1 {
		return errors.New("manager config: PoolSize must be positive")
	}
	return nil
}
