package cluster

import (
	"context"
	"math"
	"math/rand/v2"
)

// KMeans is Lloyd's algorithm with k-means++ seeding. Points are compared by
// squared Euclidean distance, which on unit vectors orders the same way as
// cosine distance.
type KMeans struct {
	MaxIterations int
	Seed          uint64
}

var _ Algorithm = (*KMeans)(nil)

// Partition clusters points into k groups. The random source is derived from
// Seed and k, so the same input always yields the same partition.
func (km *KMeans) Partition(ctx context.Context, points [][]float32, k int) (*Partition, error) {
	n := len(points)
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewPCG(km.Seed, uint64(k)))
	centers := seedCenters(points, k, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	result := &Partition{Assignments: assignments}
	for iter := 0; iter < km.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Iterations = iter + 1

		changed := false
		for i, p := range points {
			best := nearestCenter(p, centers)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			result.Converged = true
			break
		}
		centers = recomputeCenters(points, assignments, centers)
	}
	return result, nil
}

// seedCenters picks k initial centers with the k-means++ rule: each new
// center is drawn with probability proportional to its squared distance
// from the nearest center chosen so far.
func seedCenters(points [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(points)
	centers := make([][]float32, 0, k)
	centers = append(centers, clone(points[rng.IntN(n)]))

	dist := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centers {
				d = math.Min(d, squaredDistance(p, c))
			}
			dist[i] = d
			total += d
		}

		next := 0
		if total == 0 {
			// Every point coincides with a center; any choice is as good.
			next = rng.IntN(n)
		} else {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r <= 0 {
					next = i
					break
				}
				next = i
			}
		}
		centers = append(centers, clone(points[next]))
	}
	return centers
}

func nearestCenter(p []float32, centers [][]float32) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := squaredDistance(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recomputeCenters returns the mean of each cluster. A cluster left empty
// takes over the point farthest from its own center.
func recomputeCenters(points [][]float32, assignments []int, previous [][]float32) [][]float32 {
	k, dim := len(previous), len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += float64(v)
		}
	}

	centers := make([][]float32, k)
	for c := range centers {
		if counts[c] == 0 {
			continue
		}
		centers[c] = make([]float32, dim)
		for j := range sums[c] {
			centers[c][j] = float32(sums[c][j] / float64(counts[c]))
		}
	}

	for c := range centers {
		if centers[c] != nil {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			owner := assignments[i]
			if counts[owner] <= 1 || centers[owner] == nil {
				continue
			}
			if d := squaredDistance(p, centers[owner]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			centers[c] = clone(previous[c])
			continue
		}
		counts[assignments[far]]--
		assignments[far] = c
		counts[c] = 1
		centers[c] = clone(points[far])
	}
	return centers
}

func squaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
