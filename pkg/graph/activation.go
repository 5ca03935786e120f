package graph

import (
	"math"
	"math/rand"
	"sort"

	"github.com/kittclouds/cogmem/internal/store"
)

// RelationSource resolves a memory's outgoing and incoming relations, the
// only store dependency spreading activation needs.
type RelationSource interface {
	GetRelations(memoryID string) ([]store.Relation, error)
}

// ActivationParams configures a single spreading-activation run (§4.D).
// The same function serves targeted retrieval (Sigma=0.1) and REM
// exploration (Sigma=0.6) by varying Sigma alone.
type ActivationParams struct {
	DecayFactor         float64 // default 0.4
	Sigma               float64 // noise stddev; 0.1 targeted, 0.6 REM
	ActivationThreshold float64 // default 0.005
	MaxSteps            int     // default 4
	MaxResults          int
	ResultThreshold     float64

	// Rand, when non-nil, is used for Gaussian noise instead of the
	// package-level source. Tests pass a seeded *rand.Rand for
	// determinism; production code may leave it nil.
	Rand *rand.Rand
}

// Activated is one node reached by spreading activation, with its final
// activation level.
type Activated struct {
	MemoryID   string
	Activation float64
	Depth      int
}

// Spread performs a bounded BFS from seedID: initial activation 1.0,
// multiplied by DecayFactor plus Gaussian noise at each hop, stopping a
// branch once activation drops below ActivationThreshold or depth
// exceeds MaxSteps. Returns the top MaxResults nodes with activation ≥
// ResultThreshold, excluding the seed itself.
func Spread(rs RelationSource, seedID string, p ActivationParams) ([]Activated, error) {
	if p.DecayFactor <= 0 {
		p.DecayFactor = 0.4
	}
	if p.ActivationThreshold <= 0 {
		p.ActivationThreshold = 0.005
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = 4
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	type frontierNode struct {
		id         string
		activation float64
		depth      int
	}

	best := make(map[string]float64)
	queue := []frontierNode{{id: seedID, activation: 1.0, depth: 0}}
	visited := map[string]bool{seedID: true}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if node.depth > p.MaxSteps {
			continue
		}

		rels, err := rs.GetRelations(node.id)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			neighbor := r.TargetID
			if neighbor == node.id {
				neighbor = r.SourceID
			} else if r.SourceID != node.id {
				continue
			}
			if neighbor == node.id {
				continue
			}

			noise := rng.NormFloat64() * p.Sigma
			activation := node.activation*p.DecayFactor + noise
			if activation < 0 {
				activation = 0
			}
			if activation < p.ActivationThreshold {
				continue
			}

			if activation > best[neighbor] {
				best[neighbor] = activation
			}
			if !visited[neighbor] || best[neighbor] <= activation {
				queue = append(queue, frontierNode{id: neighbor, activation: activation, depth: node.depth + 1})
			}
			visited[neighbor] = true
		}
	}

	delete(best, seedID)

	out := make([]Activated, 0, len(best))
	for id, act := range best {
		if act < p.ResultThreshold {
			continue
		}
		out = append(out, Activated{MemoryID: id, Activation: act})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Activation != out[j].Activation {
			return out[i].Activation > out[j].Activation
		}
		return out[i].MemoryID < out[j].MemoryID
	})
	if p.MaxResults > 0 && len(out) > p.MaxResults {
		out = out[:p.MaxResults]
	}
	return out, nil
}

// clamp01 bounds a float to [0, 1]; activation values can exceed 1 after
// noise is added at very high decay factors, so callers that want a
// probability-like score should pass it through this.
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
