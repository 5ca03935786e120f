// Package decay implements the prominence decay and utility-based
// archival of §4.E, run synchronously by the gardener's lightTick.
package decay

import (
	"math"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/cogmemerr"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/rs/zerolog"
)

// Store is the narrow slice of internal/store.SQLiteStore decay needs.
type Store interface {
	GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error)
	UpdateMemory(id string, patch store.MemoryPatch) error
}

// Engine applies prominence decay and utility archival for one user at a
// time, matching the per-user scoping the rest of the core uses.
type Engine struct {
	store Store
	cfg   config.Decay
	log   zerolog.Logger
}

func New(st Store, cfg config.Decay, log zerolog.Logger) *Engine {
	return &Engine{store: st, cfg: cfg, log: log}
}

// Summary reports how many memories were touched by a single pass.
type Summary struct {
	Decayed  int
	Archived int
	Errors   int
}

// Run applies decay then archival for every non-static_profile, isLatest
// memory owned by userID. disableArchival (config.Gardener.DisableArchival)
// is threaded in by the caller; passing it true here short-circuits step
// 2 for bulk-ingest tests per §4.E.
func (e *Engine) Run(userID string, nowMs int64, disableArchival bool) Summary {
	var sum Summary

	isLatest := true
	memories, err := e.store.GetMemoriesByUser(userID, store.MemoryQueryOptions{IsLatest: &isLatest})
	if err != nil {
		e.log.Error().Err(err).Str("userId", userID).Msg("decay: failed to list memories")
		sum.Errors++
		return sum
	}

	for _, m := range memories {
		if m.MemoryType == store.MemoryTypeStaticProfile {
			continue
		}

		newProminence := e.decayOne(m, nowMs)
		if newProminence != m.Prominence {
			if err := e.store.UpdateMemory(m.ID, store.MemoryPatch{Prominence: &newProminence}); err != nil {
				e.log.Warn().Err(err).Str("memoryId", m.ID).Msg("decay: prominence update failed")
				sum.Errors++
				continue
			}
			sum.Decayed++
			m.Prominence = newProminence
		}

		if disableArchival {
			continue
		}
		if e.shouldArchive(m, nowMs) {
			zero := 0.0
			if err := e.store.UpdateMemory(m.ID, store.MemoryPatch{Prominence: &zero}); err != nil {
				e.log.Warn().Err(err).Str("memoryId", m.ID).Msg("decay: archival update failed")
				sum.Errors++
				continue
			}
			sum.Archived++
		}
	}
	return sum
}

// decayOne returns the new prominence for m after one tick's worth of
// decay: prominence * exp(-lambda * deltaDays), clamped >= 0.
func (e *Engine) decayOne(m store.Memory, nowMs int64) float64 {
	deltaDays := float64(nowMs-m.UpdatedAt) / float64(24*time.Hour/time.Millisecond)
	if deltaDays <= 0 {
		return m.Prominence
	}
	lambda := e.cfg.BaseRate
	if override, ok := e.cfg.CategoryOverride[string(m.Category)]; ok {
		lambda = override
	}
	next := m.Prominence * math.Exp(-lambda*deltaDays)
	if next < 0 {
		next = 0
	}
	return next
}

// shouldArchive implements §4.E's utility-based archival predicate.
func (e *Engine) shouldArchive(m store.Memory, nowMs int64) bool {
	if m.MemoryType == store.MemoryTypeStaticProfile || !m.IsLatest {
		return false
	}
	ageDays := float64(nowMs-m.CreatedAt) / float64(24*time.Hour/time.Millisecond)
	if ageDays < e.cfg.MinAgeDays {
		return false
	}
	utility := m.Prominence * math.Log(1+float64(m.AccessCount))
	return utility < e.cfg.ArchiveThreshold
}

// Archive is a standalone entry point equivalent to the archival half of
// Run, used by callers (tests, §9's "disableArchival" bulk-ingest path)
// that want to force-evaluate one memory without running decay first.
func Archive(st Store, m store.Memory, cfg config.Decay, nowMs int64) error {
	e := &Engine{store: st, cfg: cfg}
	if !e.shouldArchive(m, nowMs) {
		return nil
	}
	zero := 0.0
	if err := st.UpdateMemory(m.ID, store.MemoryPatch{Prominence: &zero}); err != nil {
		return cogmemerr.NewStore("decay.archive", err)
	}
	return nil
}
