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

package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexis/core"
)

// scoreEpsilon is the margin a larger k must win by to be preferred.
const scoreEpsilon = 1e-9

// Config bounds the search over cluster counts.
type Config struct {
	// MinK is the smallest cluster count tried. Default: 2
	MinK int `yaml:"min_k"`
	// MaxK caps the cluster count. Default: 20
	MaxK int `yaml:"max_k"`
	// PointsPerCluster further caps k at n / PointsPerCluster. Default: 50
	PointsPerCluster int `yaml:"points_per_cluster"`
	// MaxIterations bounds each k-means run. Default: 100
	MaxIterations int `yaml:"max_iterations"`
	// SampleCap bounds the points used for silhouette scoring. Default: 2000
	SampleCap int `yaml:"sample_cap"`
	// Seed makes seeding and sampling reproducible.
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the default clustering bounds.
func DefaultConfig() Config {
	return Config{
		MinK:             2,
		MaxK:             20,
		PointsPerCluster: 50,
		MaxIterations:    100,
		SampleCap:        2000,
		Seed:             42,
	}
}

// Validate checks that the bounds are usable.
func (c Config) Validate() error {
	if c.MinK < 2 {
		return errors.New("cluster config: MinK must be at least 2")
	}
	if c.MaxK < c.MinK {
		return errors.New("cluster config: MaxK must not be below MinK")
	}
	if c.PointsPerCluster < 1 {
		return errors.New("cluster config: PointsPerCluster must be positive")
	}
	if c.MaxIterations < 1 {
		return errors.New("cluster config: MaxIterations must be positive")
	}
	return nil
}

// Clusterer partitions leaf node embeddings into domains, choosing the
// number of domains by the evaluator's score.
type Clusterer struct {
	config    Config
	evaluator Evaluator
	workers   int
	logger    *slog.Logger
}

// Option configures a Clusterer.
type Option func(*Clusterer) error

// WithConfig replaces the default bounds.
func WithConfig(config Config) Option {
	return func(c *Clusterer) error {
		if err := config.Validate(); err != nil {
			return err
		}
		c.config = config
		return nil
	}
}

// WithEvaluator substitutes the clustering algorithm and scorer.
func WithEvaluator(evaluator Evaluator) Option {
	return func(c *Clusterer) error {
		if evaluator.Algorithm == nil || evaluator.Scorer == nil {
			return errors.New("cluster: evaluator needs an algorithm and a scorer")
		}
		c.evaluator = evaluator
		return nil
	}
}

// WithPoolSize sets how many candidate k are evaluated concurrently.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(c *Clusterer) error {
		if size < 1 {
			size = 1
		}
		c.workers = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Clusterer) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClusterer creates a clusterer using k-means and silhouette scoring
// unless an evaluator is supplied.
func NewClusterer(opts ...Option) (*Clusterer, error) {
	c := &Clusterer{
		config:  DefaultConfig(),
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.evaluator.Algorithm == nil {
		c.evaluator = Evaluator{
			Algorithm: &KMeans{MaxIterations: c.config.MaxIterations, Seed: c.config.Seed},
			Scorer:    &Silhouette{SampleCap: c.config.SampleCap, Seed: c.config.Seed},
		}
	}
	c.logger = c.logger.With("component", "clusterer")
	return c, nil
}

// candidate is the evaluation of one k.
type candidate struct {
	k         int
	partition *Partition
	score     float64
	err       error
}

// Cluster partitions vectors into domains. Returns core.ErrInsufficientData
// when fewer than two distinct vectors are supplied.
func (c *Clusterer) Cluster(ctx context.Context, vectors map[core.NodeID][]float32) ([]*core.Domain, error) {
	ids := make([]core.NodeID, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	raw := make([][]float32, len(ids))
	points := make([][]float32, len(ids))
	dim := -1
	for i, id := range ids {
		v := vectors[id]
		if dim == -1 {
			dim = len(v)
		}
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: node %s has %d dimensions, expected %d",
				core.ErrDimensionMismatch, id, len(v), dim)
		}
		raw[i] = v
		points[i] = core.Normalize(v)
	}

	distinct := countDistinct(raw)
	if distinct < 2 {
		return nil, fmt.Errorf("%w: %d distinct vectors", core.ErrInsufficientData, distinct)
	}

	minK, maxK := c.kRange(len(points), distinct)
	c.logger.Info("clustering", "points", len(points), "distinct", distinct, "min_k", minK, "max_k", maxK)

	candidates, err := c.evaluate(ctx, points, minK, maxK)
	if err != nil {
		return nil, err
	}

	var best *candidate
	for i := range candidates {
		cand := &candidates[i]
		c.logger.Debug("candidate scored", "k", cand.k, "score", cand.score,
			"converged", cand.partition.Converged, "iterations", cand.partition.Iterations)
		if best == nil || cand.score > best.score+scoreEpsilon {
			best = cand
		}
	}
	if !best.partition.Converged {
		c.logger.Warn("clustering did not converge, keeping best effort partition",
			"k", best.k, "iterations", best.partition.Iterations)
	}
	c.logger.Info("selected cluster count", "k", best.k, "score", best.score)

	return buildDomains(ids, vectors, best.partition.Assignments, best.k)
}

// kRange returns the candidate cluster counts for n points.
func (c *Clusterer) kRange(n, distinct int) (int, int) {
	maxK := min(c.config.MaxK, n/c.config.PointsPerCluster)
	maxK = max(maxK, c.config.MinK)
	maxK = min(maxK, distinct)
	minK := min(c.config.MinK, maxK)
	return minK, maxK
}

// evaluate runs every candidate k on a worker pool and returns the
// candidates ordered by k.
func (c *Clusterer) evaluate(ctx context.Context, points [][]float32, minK, maxK int) ([]candidate, error) {
	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	candidates := make([]candidate, maxK-minK+1)
	var wg sync.WaitGroup
	for k := minK; k <= maxK; k++ {
		cand := &candidates[k-minK]
		cand.k = k
		wg.Add(1)
		task := func() {
			defer wg.Done()
			partition, err := c.evaluator.Algorithm.Partition(ctx, points, k)
			if err != nil {
				cand.err = err
				return
			}
			cand.partition = partition
			cand.score = c.evaluator.Scorer.Score(points, partition.Assignments, k)
			if math.IsNaN(cand.score) {
				cand.score = math.Inf(-1)
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			cand.err = err
		}
	}
	wg.Wait()

	var errs []error
	for _, cand := range candidates {
		if cand.err != nil {
			errs = append(errs, fmt.Errorf("k=%d: %w", cand.k, cand.err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return candidates, nil
}

// buildDomains groups ids by assignment. Each centroid is the exact mean of
// its members' original vectors. Empty clusters are dropped.
func buildDomains(ids []core.NodeID, vectors map[core.NodeID][]float32, assignments []int, k int) ([]*core.Domain, error) {
	groups := make([][]core.NodeID, k)
	for i, id := range ids {
		groups[assignments[i]] = append(groups[assignments[i]], id)
	}

	now := time.Now().UTC()
	domains := make([]*core.Domain, 0, k)
	for _, members := range groups {
		if len(members) == 0 {
			continue
		}
		memberVectors := make([][]float32, len(members))
		for i, id := range members {
			memberVectors[i] = vectors[id]
		}
		centroid, err := core.Mean(memberVectors)
		if err != nil {
			return nil, err
		}
		domains = append(domains, &core.Domain{
			ID:        core.DomainIDFromMembers(members),
			Centroid:  centroid,
			Members:   members,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	slices.SortFunc(domains, func(a, b *core.Domain) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return domains, nil
}

// countDistinct counts vectors that differ in at least one component.
func countDistinct(points [][]float32) int {
	seen := make(map[string]struct{}, len(points))
	var b strings.Builder
	for _, p := range points {
		b.Reset()
		for _, v := range p {
			bits := math.Float32bits(v)
			b.WriteByte(byte(bits))
			b.WriteByte(byte(bits >> 8))
			b.WriteByte(byte(bits >> 16))
			b.WriteByte(byte(bits >> 24))
		}
		seen[b.String()] = struct{}{}
	}
	return len(seen)
}
