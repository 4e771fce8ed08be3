package expansion

import (
	"cmp"
	"container/heap"
	"context"
	"errors"
	"slices"

	"github.com/poiesic/lexis/core"
	"github.com/poiesic/lexis/storage"
)

// costEpsilon absorbs float32 rounding when comparing against the cutoff.
const costEpsilon = 1e-6

// RNEConfig tunes range network expansion.
type RNEConfig struct {
	// Threshold is the similarity floor τ; branches are cut once their
	// cost exceeds 1 - τ. Default: 0.75
	Threshold float32 `yaml:"threshold"`
	// NodeBudget caps the number of nodes visited. Default: 200
	NodeBudget int `yaml:"node_budget"`
}

// DefaultRNEConfig returns the default tuning.
func DefaultRNEConfig() RNEConfig {
	return RNEConfig{Threshold: 0.75, NodeBudget: 200}
}

// Validate checks the tuning.
func (c RNEConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.New("rne config: Threshold must be within [0, 1]")
	}
	if c.NodeBudget < 1 {
		return errors.New("rne config: NodeBudget must be positive")
	}
	return nil
}

// move records how a node was reached. Vertical moves keep their direction:
// an ancestor is only expanded upward and a descendant only downward, so
// the way from a node to its sibling always goes through the sibling rule.
type move int

const (
	moveOrigin move = iota // seed, or reached sideways
	moveUp
	moveDown
)

type rneState struct {
	id   core.NodeID
	move move
}

type rneItem struct {
	id   core.NodeID
	cost float32
	seed core.NodeID
	move move
}

// rneQueue is a min-heap on cost, ties broken by node id then move.
type rneQueue []rneItem

func (q rneQueue) Len() int { return len(q) }
func (q rneQueue) Less(i, j int) bool {
	return cmp.Or(
		cmp.Compare(q[i].cost, q[j].cost),
		cmp.Compare(q[i].id, q[j].id),
		cmp.Compare(q[i].move, q[j].move)) < 0
}
func (q rneQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *rneQueue) Push(x any)   { *q = append(*q, x.(rneItem)) }
func (q *rneQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// RNE expands seeds in order of accumulated cost. Moving to a parent or a
// child costs nothing; moving to a sibling costs 1 - cos(seed, sibling),
// where seed is the seed the current branch started from. A node is visited
// at its cheapest cost and expanded once per direction it is reached in. Branches whose cost exceeds 1 - Threshold are cut,
// and expansion stops once NodeBudget nodes are visited.
//
// Every visited node is returned, seeds included, with score 1 - cost.
// Results are in visiting order.
func RNE(ctx context.Context, g Graph, seeds []core.ScoredNode, config RNEConfig) ([]Visit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	maxCost := 1 - config.Threshold

	seedIDs := make([]core.NodeID, len(seeds))
	for i, s := range seeds {
		seedIDs[i] = s.NodeID
	}
	seedVectors, err := g.Vectors(ctx, seedIDs)
	if err != nil {
		return nil, err
	}

	// States are (node, move) pairs. An upward and a downward arrival
	// expand different edges, so neither blocks the other; a sideways
	// arrival expands both and blocks either.
	best := make(map[rneState]float32)
	expanded := make(map[rneState]struct{})
	visited := make(map[core.NodeID]struct{})
	queue := &rneQueue{}

	covered := func(id core.NodeID, m move) bool {
		if _, done := expanded[rneState{id, moveOrigin}]; done {
			return true
		}
		_, done := expanded[rneState{id, m}]
		return done
	}

	relax := func(item rneItem) {
		if item.cost > maxCost+costEpsilon {
			return
		}
		if covered(item.id, item.move) {
			return
		}
		state := rneState{item.id, item.move}
		if c, seen := best[state]; seen && c <= item.cost {
			return
		}
		best[state] = item.cost
		heap.Push(queue, item)
	}

	for _, id := range seedIDs {
		relax(rneItem{id: id, seed: id, move: moveOrigin})
	}

	var visits []Visit
	for queue.Len() > 0 && len(visits) < config.NodeBudget {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := heap.Pop(queue).(rneItem)
		if covered(item.id, item.move) {
			continue
		}
		if item.cost > best[rneState{item.id, item.move}] {
			continue
		}
		expanded[rneState{item.id, item.move}] = struct{}{}
		if _, done := visited[item.id]; !done {
			visited[item.id] = struct{}{}
			visits = append(visits, Visit{
				NodeID: item.id,
				Score:  core.Clamp01(1 - item.cost),
				Cost:   item.cost,
				Seed:   item.seed,
			})
		}

		parents, err := g.Neighbors(ctx, item.id, storage.DirectionIn)
		if err != nil {
			return nil, err
		}
		children, err := g.Neighbors(ctx, item.id, storage.DirectionOut)
		if err != nil {
			return nil, err
		}

		if item.move != moveDown {
			for _, p := range parents {
				relax(rneItem{id: p, cost: item.cost, seed: item.seed, move: moveUp})
			}
		}
		if item.move != moveUp {
			for _, c := range children {
				relax(rneItem{id: c, cost: item.cost, seed: item.seed, move: moveDown})
			}
		}

		siblings, err := siblingsOf(ctx, g, item.id, parents)
		if err != nil {
			return nil, err
		}
		if len(siblings) == 0 {
			continue
		}
		vectors, err := g.Vectors(ctx, siblings)
		if err != nil {
			return nil, err
		}
		seedVector := seedVectors[item.seed]
		for _, s := range siblings {
			step := 1 - core.Cosine(seedVector, vectors[s])
			relax(rneItem{id: s, cost: item.cost + max(step, 0), seed: item.seed, move: moveOrigin})
		}
	}
	return visits, nil
}

// siblingsOf returns the other children of id's parents, sorted and unique.
func siblingsOf(ctx context.Context, g Graph, id core.NodeID, parents []core.NodeID) ([]core.NodeID, error) {
	var siblings []core.NodeID
	for _, p := range parents {
		children, err := g.Neighbors(ctx, p, storage.DirectionOut)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if c != id {
				siblings = append(siblings, c)
			}
		}
	}
	slices.Sort(siblings)
	return slices.Compact(siblings), nil
}
