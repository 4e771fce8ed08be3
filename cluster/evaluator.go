package cluster

import "context"

// Partition is the outcome of running a clustering algorithm for one k.
type Partition struct {
	// Assignments maps each point index to a cluster in [0, k).
	Assignments []int
	// Converged is false when the iteration bound was reached first.
	Converged  bool
	Iterations int
}

// Algorithm partitions points into k clusters.
type Algorithm interface {
	Partition(ctx context.Context, points [][]float32, k int) (*Partition, error)
}

// Scorer rates a partition. Scores must be comparable across k; higher is better.
type Scorer interface {
	Score(points [][]float32, assignments []int, k int) float64
}

// Evaluator pairs the algorithm that proposes a partition for a candidate k
// with the scorer used to choose between candidates.
type Evaluator struct {
	Algorithm Algorithm
	Scorer    Scorer
}
