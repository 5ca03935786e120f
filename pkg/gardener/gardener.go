// Package gardener orchestrates the three maintenance ticks of §4.J:
// a synchronous no-LLM lightTick (decay + archival), a cheap-LLM
// deepTick (behavioral patterns, trust, affect, one proactive
// suggestion), and a heavy-LLM sleepTick (dream cycle, reflection, gap
// scan) gated by quiet hours and a busy flag. Grounded on the
// teacher's engine-orchestrator pattern in pkg/scanner/discovery/engine.go
// (observe-then-promote sequencing, per-step isolation).
package gardener

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/decay"
	"github.com/kittclouds/cogmem/pkg/dream"
	"github.com/kittclouds/cogmem/pkg/gap"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/kittclouds/cogmem/pkg/reflection"
)

// Store is the gardener's full persistence dependency: the union of
// every sub-engine's Store interface plus behavioral-pattern and
// scheduled-item operations.
type Store interface {
	GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error)
	UpdateMemory(id string, patch store.MemoryPatch) error
	GetRelations(memoryID string) ([]store.Relation, error)
	AddRelation(r store.Relation) (store.Relation, error)
	FuseCluster(sourceIDs []string, fused store.Memory) (store.Memory, error)
	SessionSummariesSince(userID string, cutoffMs int64) ([]store.SessionSummary, error)
	GetRecentSessionSummaries(userID string, limit int) ([]store.SessionSummary, error)
	AddMemory(m store.Memory) (store.Memory, error)
	GetBehavioralPatterns(userID string) (*store.BehavioralPatterns, error)
	UpsertBehavioralPatterns(bp store.BehavioralPatterns) error
	AddScheduledItem(item store.ScheduledItem) (store.ScheduledItem, error)
}

const maxRetainedGapSignals = 50

// Engine sequences lightTick/deepTick/sleepTick for a single embedded
// core instance, shared across all users it is invoked for.
type Engine struct {
	store         Store
	decayEngine   *decay.Engine
	dreamEngine   *dream.Engine
	reflectEngine *reflection.Engine
	phraseScanner *gap.PhraseScanner
	llm           provider.LLM
	tz            provider.TimezoneLookup
	cfg           config.Config
	log           zerolog.Logger

	sleeping atomic.Bool

	gapMu          sync.Mutex
	lastGapSignals []gap.Signal
}

// New wires the gardener's sub-engines from a single store handle and
// cognition LLM. workspaceRoot and tz may be empty/nil, matching the
// optional reflection-workspace and timezone-lookup capabilities of §6.1.
func New(st Store, llm provider.LLM, tz provider.TimezoneLookup, workspaceRoot string, cfg config.Config, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "gardener").Logger()
	ps, err := gap.NewPhraseScanner(cfg.Gap.SignalPhrases)
	if err != nil {
		log.Error().Err(err).Msg("compile gap phrase scanner, continuing without it")
		ps = &gap.PhraseScanner{}
	}
	return &Engine{
		store:         st,
		decayEngine:   decay.New(st, cfg.Decay, log),
		dreamEngine:   dream.New(st, log),
		reflectEngine: reflection.New(st, llm, workspaceRoot, log),
		phraseScanner: ps,
		llm:           llm,
		tz:            tz,
		cfg:           cfg,
		log:           log,
	}
}

// TickSummary reports what one tick did, for callers and tests. A tick
// never returns a bare error (§4.J): every sub-step failure is logged
// and recorded here instead.
type TickSummary struct {
	Kind       string
	Skipped    bool
	SkipReason string
	Errors     []string

	Decay      *decay.Summary
	NREM       *dream.NREMSummary
	REM        *dream.REMSummary
	Reflection *reflection.Summary

	BehavioralPatternsUpdated bool
	ScheduledItemEmitted      bool
	GapSignalsFound           int
	GapSignalsScheduled       int
}

func (s *TickSummary) addErr(msg string) { s.Errors = append(s.Errors, msg) }

// LastGapSignals returns the most recently retained low-confidence gap
// signals (those that failed LLM triage's confidence gate), most
// recent first. This is diagnostic only and not persisted.
func (e *Engine) LastGapSignals() []gap.Signal {
	e.gapMu.Lock()
	defer e.gapMu.Unlock()
	out := make([]gap.Signal, len(e.lastGapSignals))
	copy(out, e.lastGapSignals)
	return out
}

func (e *Engine) retainGapSignals(signals []gap.Signal) {
	e.gapMu.Lock()
	defer e.gapMu.Unlock()
	e.lastGapSignals = append(signals, e.lastGapSignals...)
	if len(e.lastGapSignals) > maxRetainedGapSignals {
		e.lastGapSignals = e.lastGapSignals[:maxRetainedGapSignals]
	}
}

// LightTick runs prominence decay and utility archival synchronously,
// with no LLM call (§4.J).
func (e *Engine) LightTick(userID string, nowMs int64) TickSummary {
	summary := e.decayEngine.Run(userID, nowMs, e.cfg.Gardener.DisableArchival)
	return TickSummary{Kind: "light", Decay: &summary}
}

// resolveLocation looks up a user's timezone via the optional
// TimezoneLookup, falling back to UTC when none is configured or the
// lookup fails.
func (e *Engine) resolveLocation(ctx context.Context, userID string) *time.Location {
	if e.tz == nil {
		return time.UTC
	}
	tzName, err := e.tz.Timezone(ctx, userID)
	if err != nil || tzName == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return time.UTC
	}
	return loc
}
