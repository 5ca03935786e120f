// Package dream implements the NREM consolidation and REM exploration
// halves of the dream cycle (§4.F), run by the gardener's sleepTick.
package dream

import (
	"github.com/kittclouds/cogmem/internal/store"
	"github.com/rs/zerolog"
)

// Store is the slice of internal/store.SQLiteStore both NREM and REM need.
type Store interface {
	GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error)
	GetRelations(memoryID string) ([]store.Relation, error)
	AddRelation(r store.Relation) (store.Relation, error)
	FuseCluster(sourceIDs []string, fused store.Memory) (store.Memory, error)
}

// eligible implements the shared §4.F eligibility window: isLatest,
// memoryType not in {static_profile, derived}, 0.05 <= prominence < 0.8.
func eligible(m store.Memory, minProminence, maxProminence float64) bool {
	if !m.IsLatest {
		return false
	}
	if m.MemoryType == store.MemoryTypeStaticProfile || m.MemoryType == store.MemoryTypeDerived {
		return false
	}
	return m.Prominence >= minProminence && m.Prominence < maxProminence
}

func eligibleMemories(st Store, userID string, minProminence, maxProminence float64) ([]store.Memory, error) {
	isLatest := true
	all, err := st.GetMemoriesByUser(userID, store.MemoryQueryOptions{IsLatest: &isLatest})
	if err != nil {
		return nil, err
	}
	out := make([]store.Memory, 0, len(all))
	for _, m := range all {
		if eligible(m, minProminence, maxProminence) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Engine runs one NREM or REM pass for a user.
type Engine struct {
	store Store
	log   zerolog.Logger
}

func New(st Store, log zerolog.Logger) *Engine {
	return &Engine{store: st, log: log}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
