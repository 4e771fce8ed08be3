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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lexis/ai"
	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of items to embed in each request
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Recenterer recomputes domain centroids from their members' vectors.
// *registry.Registry satisfies it.
type Recenterer interface {
	RecomputeAll(ctx context.Context) error
}

// Reembedder orchestrates reembedding every stored item of one kind.
type Reembedder[T any] struct {
	unit      string
	config    *Config
	progress  io.Writer
	iterator  *Iterator[T]
	processor *BatchProcessor[T]
	finish    func(context.Context) error
	logger    *slog.Logger
}

// NewNodeReembedder creates a reembedder for node vectors. When recenter is
// non-nil, domain centroids are recomputed after every node is reembedded.
// progress: where to write progress output (typically os.Stderr)
func NewNodeReembedder(store storage.GraphStore, embedder ai.Embedder, recenter Recenterer, config *Config, progress io.Writer) (*Reembedder[*core.Node], error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	r := &Reembedder[*core.Node]{
		unit:      "nodes",
		config:    config,
		progress:  progress,
		iterator:  NewNodeIterator(store, config.BatchSize),
		processor: NewNodeBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default().With("component", "reembed", "kind", "nodes"),
	}
	if recenter != nil {
		r.finish = recenter.RecomputeAll
	}
	return r, nil
}

// NewEdgeReembedder creates a reembedder for relationship vectors.
func NewEdgeReembedder(store storage.GraphStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder[*core.ContainmentEdge], error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Reembedder[*core.ContainmentEdge]{
		unit:      "edges",
		config:    config,
		progress:  progress,
		iterator:  NewEdgeIterator(store, config.BatchSize),
		processor: NewEdgeBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default().With("component", "reembed", "kind", "edges"),
	}, nil
}

// Run executes the reembedding operation.
// Progress is reported to the configured writer.
func (r *Reembedder[T]) Run(ctx context.Context) error {
	snapshot, err := r.iterator.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", r.unit, err)
	}

	total := snapshot.Len()
	if total == 0 {
		fmt.Fprintf(r.progress, "No %s found in database\n", r.unit)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d %s (batch size: %d)\n", total, r.unit, r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, r.unit, total, r.config.ReportInterval)
	tracker.Start()

	err = snapshot.ForEach(ctx, func(batch []T) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Increment(len(batch))
		return nil
	})
	if err != nil {
		return err
	}
	tracker.Finish()

	if r.finish != nil {
		r.logger.Info("recomputing domain centroids")
		if err := r.finish(ctx); err != nil {
			return fmt.Errorf("failed to recompute centroids: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d %s in %v (%.1f %s/sec)\n",
		total, r.unit, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds(), r.unit)
	return nil
}
