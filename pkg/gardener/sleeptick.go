package gardener

import (
	"context"
	"fmt"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/gap"
)

// SleepTick runs the heavy-LLM maintenance sequence: NREM, then REM,
// then self-reflection, then a gap scan that may emit follow-up
// nudges (§4.J). It runs only during the user's quiet hours unless
// force is set, and skips entirely if a previous sleepTick for this
// engine is still in flight.
func (e *Engine) SleepTick(ctx context.Context, userID string, nowMs int64, force bool) TickSummary {
	summary := TickSummary{Kind: "sleep"}

	if !force && !e.cfg.QuietHours.Disabled() {
		loc := e.resolveLocation(ctx, userID)
		hour := time.UnixMilli(nowMs).In(loc).Hour()
		if !e.cfg.QuietHours.In(hour) {
			summary.Skipped = true
			summary.SkipReason = "outside configured quiet hours"
			return summary
		}
	}

	if !e.sleeping.CompareAndSwap(false, true) {
		summary.Skipped = true
		summary.SkipReason = "previous sleepTick still running"
		return summary
	}
	defer e.sleeping.Store(false)

	e.runNREM(ctx, userID, &summary)
	e.runREM(ctx, userID, &summary)
	e.runReflection(ctx, userID, nowMs, &summary)
	e.runGapScan(ctx, userID, nowMs, &summary)

	return summary
}

func (e *Engine) runNREM(ctx context.Context, userID string, summary *TickSummary) {
	defer e.recoverInto(summary, "nrem")
	if e.llm == nil {
		return
	}
	result := e.dreamEngine.RunNREM(ctx, userID, e.llm, e.cfg.NREM)
	summary.NREM = &result
}

func (e *Engine) runREM(ctx context.Context, userID string, summary *TickSummary) {
	defer e.recoverInto(summary, "rem")
	if e.llm == nil {
		return
	}
	result := e.dreamEngine.RunREM(ctx, userID, e.llm, e.cfg.REM, nil)
	summary.REM = &result
}

func (e *Engine) runReflection(ctx context.Context, userID string, nowMs int64, summary *TickSummary) {
	defer e.recoverInto(summary, "reflection")
	result := e.reflectEngine.Run(ctx, userID, nowMs)
	summary.Reflection = &result
}

func (e *Engine) runGapScan(ctx context.Context, userID string, nowMs int64, summary *TickSummary) {
	defer e.recoverInto(summary, "gap scan")

	isLatest := true
	memories, err := e.store.GetMemoriesByUser(userID, store.MemoryQueryOptions{IsLatest: &isLatest})
	if err != nil {
		summary.addErr(fmt.Sprintf("gap scan: load memories: %v", err))
		return
	}
	weekAgo := nowMs - int64(7*24*time.Hour/time.Millisecond)
	sessions, err := e.store.SessionSummariesSince(userID, weekAgo)
	if err != nil {
		summary.addErr(fmt.Sprintf("gap scan: load session summaries: %v", err))
		return
	}

	var signals []gap.Signal
	signals = append(signals, gap.StaleGoals(memories, nowMs)...)
	if bp, err := e.store.GetBehavioralPatterns(userID); err == nil {
		signals = append(signals, gap.BehavioralAnomalies(bp)...)
	}
	signals = append(signals, gap.UnresolvedThreads(sessions, nowMs)...)
	if e.phraseScanner != nil {
		signals = append(signals, e.phraseScanner.Scan(sessions)...)
	}
	summary.GapSignalsFound = len(signals)
	if len(signals) == 0 || e.llm == nil {
		return
	}

	dial := store.DialModerate
	if bp, err := e.store.GetBehavioralPatterns(userID); err == nil && bp != nil && bp.ResponsePreferences != nil {
		dial = bp.ResponsePreferences.ProactivenessDial
	}

	triaged := gap.Triage(ctx, e.llm, signals, dial)
	actionedSources := make(map[string]bool, len(triaged))
	loc := e.resolveLocation(ctx, userID)
	for _, t := range triaged {
		actionedSources[t.Signal.SourceID] = true
		urgency := gap.UrgencyNormal
		if t.Signal.Severity == gap.SeverityHigh {
			urgency = gap.UrgencyHigh
		}
		triggerAt := gap.ComputeDeliveryTime(nowMs, loc, e.cfg.QuietHours, urgency, nil, e.cfg.Proactive)
		item := store.ScheduledItem{
			UserID:  userID,
			Source:  store.SourceSystem,
			Kind:    store.KindNudge,
			Type:    "follow_up",
			Message: t.SuggestedAction,
			Context: map[string]any{
				"gapType":    string(t.Signal.Type),
				"diagnosis":  t.Diagnosis,
				"confidence": t.Confidence,
			},
			SourceMemoryID: t.Signal.SourceID,
			TriggerAt:      triggerAt,
		}
		if _, err := e.store.AddScheduledItem(item); err != nil {
			summary.addErr(fmt.Sprintf("gap scan: schedule follow-up: %v", err))
			continue
		}
		summary.GapSignalsScheduled++
	}

	var retained []gap.Signal
	for _, s := range signals {
		if !actionedSources[s.SourceID] {
			retained = append(retained, s)
		}
	}
	e.retainGapSignals(retained)
}

// recoverInto converts a panic in a sleepTick sub-step into a logged,
// recorded error rather than aborting the remaining sub-steps (§4.J,
// §5's strict per-sub-step isolation).
func (e *Engine) recoverInto(summary *TickSummary, step string) {
	if r := recover(); r != nil {
		e.log.Error().Interface("panic", r).Str("step", step).Msg("sleep tick sub-step panicked")
		summary.addErr(fmt.Sprintf("%s panicked: %v", step, r))
	}
}
