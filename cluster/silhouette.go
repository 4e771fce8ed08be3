package cluster

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/poiesic/lexis/core"
)

// Silhouette scores a partition by its mean silhouette coefficient under
// cosine distance. Above SampleCap points the score is computed on a
// deterministic sample.
type Silhouette struct {
	SampleCap int
	Seed      uint64
}

var _ Scorer = (*Silhouette)(nil)

// Score returns the mean over points of (b - a) / max(a, b), where a is the
// mean distance to the point's own cluster and b the mean distance to the
// nearest other cluster. Points in singleton clusters score 0.
func (s *Silhouette) Score(points [][]float32, assignments []int, k int) float64 {
	sample := s.sample(len(points))
	if len(sample) < 2 || k < 2 {
		return 0
	}

	total := 0.0
	sums := make([]float64, k)
	counts := make([]int, k)
	for _, i := range sample {
		clear(sums)
		clear(counts)
		for _, j := range sample {
			if i == j {
				continue
			}
			c := assignments[j]
			sums[c] += 1 - float64(core.Cosine(points[i], points[j]))
			counts[c]++
		}

		own := assignments[i]
		if counts[own] == 0 {
			continue
		}
		a := sums[own] / float64(counts[own])
		b := math.Inf(1)
		for c := range sums {
			if c == own || counts[c] == 0 {
				continue
			}
			b = math.Min(b, sums[c]/float64(counts[c]))
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(sample))
}

// sample returns the point indexes to score, in ascending order.
func (s *Silhouette) sample(n int) []int {
	if s.SampleCap <= 0 || n <= s.SampleCap {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewPCG(s.Seed, uint64(n)))
	idx := rng.Perm(n)[:s.SampleCap]
	slices.Sort(idx)
	return idx
}
