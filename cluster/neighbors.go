package cluster

import (
	"cmp"
	"slices"

	"github.com/poiesic/lexis/core"
)

// LinkNeighbors sets each domain's Neighbors to the n other domains whose
// centroids are most similar to its own, ties broken by domain id.
// Domains are modified in place.
func LinkNeighbors(domains []*core.Domain, n int) {
	type scored struct {
		id    core.DomainID
		score float32
	}
	for _, d := range domains {
		others := make([]scored, 0, len(domains)-1)
		for _, o := range domains {
			if o.ID == d.ID {
				continue
			}
			others = append(others, scored{id: o.ID, score: core.Cosine(d.Centroid, o.Centroid)})
		}
		slices.SortFunc(others, func(a, b scored) int {
			return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.id, b.id))
		})
		if len(others) > n {
			others = others[:max(n, 0)]
		}
		d.Neighbors = make([]core.DomainID, len(others))
		for i, o := range others {
			d.Neighbors[i] = o.id
		}
	}
}

// Nearest returns the domain whose centroid has the highest cosine
// similarity to vector, ties broken toward the smaller domain id.
// Returns nil when domains is empty.
func Nearest(domains []*core.Domain, vector []float32) (*core.Domain, float32) {
	var (
		best      *core.Domain
		bestScore float32
	)
	for _, d := range domains {
		score := core.Cosine(vector, d.Centroid)
		if best == nil || score > bestScore || (score == bestScore && d.ID < best.ID) {
			best, bestScore = d, score
		}
	}
	return best, bestScore
}
