package gap

import (
	"fmt"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// StaleGoals implements §4.H's stale-goals scanner over active goal
// memories (insight memories with metadata.goalType="goal",
// metadata.status="active").
func StaleGoals(memories []store.Memory, nowMs int64) []Signal {
	var out []Signal
	for _, m := range memories {
		g := extractGoalMetadata(m)
		if g.goalType != "goal" {
			continue
		}
		if g.status == "completed" || g.status == "backlog" {
			continue
		}
		if g.status != "active" {
			continue
		}

		if g.dueDate > 0 && g.dueDate < nowMs {
			out = append(out, Signal{
				Type: SignalStaleGoal, Severity: SeverityHigh,
				Description: fmt.Sprintf("goal %q is past its due date", truncate(m.Content, 80)),
				Context:     map[string]any{"memoryId": m.ID, "dueDate": g.dueDate},
				SourceID:    m.ID,
			})
			continue
		}

		freqDays := checkinFrequencyDays(g.checkinFrequency)
		if freqDays > 0 {
			ratio := float64(nowMs-m.UpdatedAt) / dayMs / freqDays
			if ratio > 3.0 {
				out = append(out, Signal{
					Type: SignalStaleGoal, Severity: SeverityMedium,
					Description: fmt.Sprintf("goal %q hasn't been checked in %.0fx its %s cadence", truncate(m.Content, 80), ratio, g.checkinFrequency),
					Context:     map[string]any{"memoryId": m.ID, "ratio": ratio},
					SourceID:    m.ID,
				})
				continue
			}
		}

		if g.dueDate == 0 && g.checkinFrequency == "" {
			ageDays := float64(nowMs-m.UpdatedAt) / dayMs
			if ageDays > 14 {
				out = append(out, Signal{
					Type: SignalStaleGoal, Severity: SeverityMedium,
					Description: fmt.Sprintf("goal %q untouched for %.0f days", truncate(m.Content, 80), ageDays),
					Context:     map[string]any{"memoryId": m.ID, "ageDays": ageDays},
					SourceID:    m.ID,
				})
			}
		}
	}
	return out
}

// BehavioralAnomalies implements §4.H's cold-start-guarded behavioral
// anomaly scanner.
func BehavioralAnomalies(bp *store.BehavioralPatterns) []Signal {
	if bp == nil || bp.MessageFrequency == nil {
		return nil
	}
	var out []Signal

	mf := bp.MessageFrequency
	if mf.Trend == store.TrendDecreasing && mf.DailyRate < 0.5*mf.WeeklyAvg {
		out = append(out, Signal{
			Type: SignalBehavioralAnomaly, Severity: SeverityLow,
			Description: "message frequency has dropped well below its weekly average",
			Context:     map[string]any{"dailyRate": mf.DailyRate, "weeklyAvg": mf.WeeklyAvg},
		})
	}

	if se := bp.SessionEngagement; se != nil {
		if se.Trend == store.TrendDecreasing && se.AvgMessagesPerSession < 3 {
			out = append(out, Signal{
				Type: SignalBehavioralAnomaly, Severity: SeverityLow,
				Description: "session engagement is declining toward very short sessions",
				Context:     map[string]any{"avgMessagesPerSession": se.AvgMessagesPerSession},
			})
		}
	}

	if rl := bp.ResponseLength; rl != nil {
		if rl.Trend == store.TrendDecreasing {
			out = append(out, Signal{
				Type: SignalBehavioralAnomaly, Severity: SeverityLow,
				Description: "user response length is trending down",
				Context:     map[string]any{"avgLength": rl.AvgLength},
			})
		}
	}

	return out
}

// UnresolvedThreads implements §4.H's unresolved-threads scanner: any
// session summary whose topics contain a "?" with no follow-up summary
// within 48h, excluding fresh short sessions.
func UnresolvedThreads(summaries []store.SessionSummary, nowMs int64) []Signal {
	var out []Signal
	for i, s := range summaries {
		if !hasQuestionTopic(s.Topics) {
			continue
		}
		ageMs := nowMs - s.CreatedAt
		if ageMs < 48*60*60*1000 && s.MessageCount < 3 {
			continue
		}
		if hasFollowUpWithin(summaries, i, s, 48*60*60*1000) {
			continue
		}
		out = append(out, Signal{
			Type: SignalUnresolvedThread, Severity: SeverityMedium,
			Description: fmt.Sprintf("open question from session %q went unanswered", s.SessionID),
			Context:     map[string]any{"sessionId": s.SessionID, "topics": s.Topics},
			SourceID:    s.ID,
		})
	}
	return out
}

func hasQuestionTopic(topics []string) bool {
	for _, t := range topics {
		for _, r := range t {
			if r == '?' {
				return true
			}
		}
	}
	return false
}

func hasFollowUpWithin(summaries []store.SessionSummary, idx int, s store.SessionSummary, windowMs int64) bool {
	for j, other := range summaries {
		if j == idx {
			continue
		}
		if other.CreatedAt <= s.CreatedAt {
			continue
		}
		if other.CreatedAt-s.CreatedAt <= windowMs {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
