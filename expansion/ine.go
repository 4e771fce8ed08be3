package expansion

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// INEConfig tunes iterative neighbor expansion.
type INEConfig struct {
	// FanOut is the number of neighbors kept per expanded node. Default: 5
	FanOut int `yaml:"fan_out"`
	// Iterations is the number of expansion rounds. Default: 2
	Iterations int `yaml:"iterations"`
}

// DefaultINEConfig returns the default tuning.
func DefaultINEConfig() INEConfig {
	return INEConfig{FanOut: 5, Iterations: 2}
}

// Validate checks the tuning.
func (c INEConfig) Validate() error {
	if c.FanOut < 1 {
		return errors.New("ine config: FanOut must be positive")
	}
	if c.Iterations < 0 {
		return errors.New("ine config: Iterations must not be negative")
	}
	return nil
}

// INE expands seeds breadth-first for a fixed number of rounds. In each
// round every frontier node keeps only its FanOut unvisited neighbors (in
// either edge direction) most similar to query; the rest are dropped.
//
// Seeds are not returned. Each visited node scores its cosine similarity
// to query, and results are in visit order.
func INE(ctx context.Context, g Graph, seeds []core.NodeID, query []float32, config INEConfig) ([]Visit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	visited := make(map[core.NodeID]struct{}, len(seeds))
	origin := make(map[core.NodeID]core.NodeID, len(seeds))
	frontier := slices.Clone(seeds)
	slices.Sort(frontier)
	frontier = slices.Compact(frontier)
	for _, s := range frontier {
		visited[s] = struct{}{}
		origin[s] = s
	}

	type scored struct {
		id    core.NodeID
		score float32
	}

	var visits []Visit
	for round := 0; round < config.Iterations && len(frontier) > 0; round++ {
		var next []core.NodeID
		for _, u := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			neighbors, err := g.Neighbors(ctx, u, storage.DirectionBoth)
			if err != nil {
				return nil, err
			}
			candidates := make([]core.NodeID, 0, len(neighbors))
			for _, n := range neighbors {
				if _, seen := visited[n]; !seen {
					candidates = append(candidates, n)
				}
			}
			if len(candidates) == 0 {
				continue
			}

			vectors, err := g.Vectors(ctx, candidates)
			if err != nil {
				return nil, err
			}
			ranked := make([]scored, len(candidates))
			for i, c := range candidates {
				ranked[i] = scored{id: c, score: core.Cosine(query, vectors[c])}
			}
			slices.SortFunc(ranked, func(a, b scored) int {
				return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.id, b.id))
			})
			if len(ranked) > config.FanOut {
				ranked = ranked[:config.FanOut]
			}

			for _, r := range ranked {
				visited[r.id] = struct{}{}
				origin[r.id] = origin[u]
				visits = append(visits, Visit{
					NodeID: r.id,
					Score:  core.Clamp01(r.score),
					Cost:   1 - r.score,
					Seed:   origin[u],
				})
				next = append(next, r.id)
			}
		}
		frontier = next
	}
	return visits, nil
}
