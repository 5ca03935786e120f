package gardener

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/gap"
	"github.com/kittclouds/cogmem/pkg/provider"
)

const (
	trendWindow     = 7 * 24 * time.Hour
	affectHalfLife  = 7.0 // days
	recentSummaries = 20
)

type affectReply struct {
	Valence    float64 `json:"valence"`
	Arousal    float64 `json:"arousal"`
	Emotion    string  `json:"emotion"`
	GoalSignal string  `json:"goalSignal"`
}

type proactiveReply struct {
	ShouldEmit bool    `json:"shouldEmit"`
	Urgency    string  `json:"urgency"`
	Message    string  `json:"message"`
	GapType    string  `json:"gapType"`
	Confidence float64 `json:"confidence"`
}

type deepTickReply struct {
	Affect     affectReply    `json:"affect"`
	TrustDelta float64        `json:"trustDelta"`
	Proactive  proactiveReply `json:"proactive"`
}

// DeepTick updates behavioral pattern trends from session-summary
// statistics (no LLM), then makes one cheap LLM call to classify
// smoothed affect, adjust the trust score, and evaluate the unified
// proactive prompt (§4.J).
func (e *Engine) DeepTick(ctx context.Context, userID string, nowMs int64) TickSummary {
	summary := TickSummary{Kind: "deep"}

	summaries, err := e.store.GetRecentSessionSummaries(userID, recentSummaries)
	if err != nil {
		summary.addErr(fmt.Sprintf("load session summaries: %v", err))
		return summary
	}

	prev, err := e.store.GetBehavioralPatterns(userID)
	if err != nil {
		summary.addErr(fmt.Sprintf("load behavioral patterns: %v", err))
	}

	bp := store.BehavioralPatterns{UserID: userID, UpdatedAt: nowMs}
	bp.MessageFrequency = computeMessageFrequency(summaries, nowMs)
	bp.SessionEngagement = computeSessionEngagement(summaries, nowMs)
	if prev != nil {
		// Response length needs per-message text the Store does not
		// retain at the session-summary tier; carry the prior reading
		// forward rather than fabricate a trend from absent data.
		bp.ResponseLength = prev.ResponseLength
		// Affect and preferences keep their prior values unless the LLM
		// step below produces new ones.
		bp.SmoothedAffect = prev.SmoothedAffect
		bp.ResponsePreferences = prev.ResponsePreferences
	}

	if e.llm != nil && len(summaries) > 0 {
		reply, ok := e.runDeepTickLLM(ctx, userID, prev, bp, summaries)
		if ok {
			var prevAffect *store.SmoothedAffect
			var prevUpdated int64
			if prev != nil {
				prevAffect = prev.SmoothedAffect
				prevUpdated = prev.UpdatedAt
			}
			deltaDays := float64(nowMs-prevUpdated) / float64(24*time.Hour/time.Millisecond)
			if prevUpdated == 0 {
				deltaDays = affectHalfLife // no history: trust the raw reading fully
			}
			bp.SmoothedAffect = smoothAffect(prevAffect, store.SmoothedAffect{
				Valence: clampRange(reply.Affect.Valence, -1, 1), Arousal: clampRange(reply.Affect.Arousal, 0, 1),
				Emotion: reply.Affect.Emotion, GoalSignal: reply.Affect.GoalSignal,
			}, deltaDays)

			prevTrust := 0.5
			dial := store.DialModerate
			if prev != nil && prev.ResponsePreferences != nil {
				prevTrust = prev.ResponsePreferences.TrustScore
				dial = prev.ResponsePreferences.ProactivenessDial
			}
			bp.ResponsePreferences = &store.ResponsePreferences{
				ProactivenessDial: dial,
				TrustScore:        clampRange(prevTrust+reply.TrustDelta, 0, 1),
			}

			if reply.Proactive.ShouldEmit && reply.Proactive.Message != "" {
				if e.emitProactiveItem(ctx, userID, nowMs, reply.Proactive) {
					summary.ScheduledItemEmitted = true
				}
			}
		} else {
			summary.addErr("deep tick LLM call failed or returned unparseable reply")
		}
	}

	if err := e.store.UpsertBehavioralPatterns(bp); err != nil {
		summary.addErr(fmt.Sprintf("upsert behavioral patterns: %v", err))
	} else {
		summary.BehavioralPatternsUpdated = true
	}

	return summary
}

func (e *Engine) runDeepTickLLM(ctx context.Context, userID string, prev *store.BehavioralPatterns, bp store.BehavioralPatterns, summaries []store.SessionSummary) (deepTickReply, bool) {
	var b strings.Builder
	b.WriteString("You monitor a user's recent conversation sessions. Classify their current emotional state, ")
	b.WriteString("suggest a trust-score adjustment, and decide whether a single proactive message is warranted right now.\n\n")
	b.WriteString("Recent sessions:\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "- %s\n", truncateText(s.Summary, 200))
	}
	if prev != nil && prev.SmoothedAffect != nil {
		fmt.Fprintf(&b, "\nPrior affect reading: valence=%.2f arousal=%.2f emotion=%s\n",
			prev.SmoothedAffect.Valence, prev.SmoothedAffect.Arousal, prev.SmoothedAffect.Emotion)
	}
	b.WriteString("\nReturn JSON: {\"affect\":{\"valence\":-1..1,\"arousal\":0..1,\"emotion\":\"...\",\"goalSignal\":\"...\"}, ")
	b.WriteString("\"trustDelta\":-0.2..0.2, \"proactive\":{\"shouldEmit\":bool,\"urgency\":\"high|normal\",\"message\":\"...\",\"gapType\":\"...\",\"confidence\":0-1}}")

	resp, err := e.llm.Complete(ctx, provider.CompleteRequest{
		Messages:    []provider.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		return deepTickReply{}, false
	}
	var text string
	for _, blk := range resp.Content {
		if blk.Kind == provider.BlockText {
			text += blk.Text
		}
	}
	reply, ok := provider.ParseJSONReply[deepTickReply](text)
	if !ok {
		return deepTickReply{}, false
	}
	return reply, true
}

func (e *Engine) emitProactiveItem(ctx context.Context, userID string, nowMs int64, p proactiveReply) bool {
	if p.Confidence > 0 && p.Confidence < 0.5 {
		return false
	}
	urgency := gap.UrgencyNormal
	if p.Urgency == "high" {
		urgency = gap.UrgencyHigh
	}
	loc := e.resolveLocation(ctx, userID)
	triggerAt := gap.ComputeDeliveryTime(nowMs, loc, e.cfg.QuietHours, urgency, nil, e.cfg.Proactive)

	item := store.ScheduledItem{
		UserID:    userID,
		Source:    store.SourceSystem,
		Kind:      store.KindNudge,
		Type:      "proactive_prompt",
		Message:   p.Message,
		Context:   map[string]any{"source": "deepTick", "gapType": p.GapType},
		TriggerAt: triggerAt,
	}
	if _, err := e.store.AddScheduledItem(item); err != nil {
		e.log.Error().Err(err).Str("userId", userID).Msg("emit proactive scheduled item")
		return false
	}
	return true
}

func computeMessageFrequency(summaries []store.SessionSummary, nowMs int64) *store.MessageFrequency {
	if len(summaries) == 0 {
		return nil
	}
	windowMs := trendWindow.Milliseconds()
	var recentCount, priorCount int
	for _, s := range summaries {
		age := nowMs - s.CreatedAt
		switch {
		case age <= windowMs:
			recentCount += s.MessageCount
		case age <= 2*windowMs:
			priorCount += s.MessageCount
		}
	}
	dailyRate := float64(recentCount) / 7.0
	weeklyAvg := float64(priorCount)
	if weeklyAvg == 0 {
		weeklyAvg = dailyRate * 7
	}
	return &store.MessageFrequency{
		DailyRate: dailyRate, WeeklyAvg: weeklyAvg,
		Trend: trendFrom(float64(recentCount), float64(priorCount)), LastComputed: nowMs,
	}
}

func computeSessionEngagement(summaries []store.SessionSummary, nowMs int64) *store.SessionEngagement {
	if len(summaries) == 0 {
		return nil
	}
	windowMs := trendWindow.Milliseconds()
	var recentMsgs, recentSessions, priorMsgs, priorSessions float64
	var recentDur, priorDur float64
	for _, s := range summaries {
		age := nowMs - s.CreatedAt
		switch {
		case age <= windowMs:
			recentMsgs += float64(s.MessageCount)
			recentDur += float64(s.DurationMs)
			recentSessions++
		case age <= 2*windowMs:
			priorMsgs += float64(s.MessageCount)
			priorDur += float64(s.DurationMs)
			priorSessions++
		}
	}
	if recentSessions == 0 {
		return nil
	}
	avgMsgs := recentMsgs / recentSessions
	avgDur := recentDur / recentSessions
	priorAvgMsgs := avgMsgs
	if priorSessions > 0 {
		priorAvgMsgs = priorMsgs / priorSessions
	}
	return &store.SessionEngagement{
		AvgMessagesPerSession: avgMsgs, AvgDurationMs: avgDur,
		Trend: trendFrom(avgMsgs, priorAvgMsgs), LastComputed: nowMs,
	}
}

func trendFrom(recent, prior float64) store.Trend {
	if prior == 0 {
		return store.TrendStable
	}
	ratio := recent / prior
	switch {
	case ratio > 1.15:
		return store.TrendIncreasing
	case ratio < 0.85:
		return store.TrendDecreasing
	default:
		return store.TrendStable
	}
}

func smoothAffect(prev *store.SmoothedAffect, raw store.SmoothedAffect, deltaDays float64) *store.SmoothedAffect {
	if prev == nil {
		return &raw
	}
	alpha := 1 - math.Exp(-math.Ln2*deltaDays/affectHalfLife)
	alpha = clampRange(alpha, 0, 1)
	return &store.SmoothedAffect{
		Valence:    alpha*raw.Valence + (1-alpha)*prev.Valence,
		Arousal:    alpha*raw.Arousal + (1-alpha)*prev.Arousal,
		Emotion:    raw.Emotion,
		GoalSignal: raw.GoalSignal,
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
