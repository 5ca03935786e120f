// Package gap implements the gap scanner of §4.H: deterministic
// heuristics over goals, behavioral patterns, and session threads,
// followed by LLM triage gated by the user's proactiveness dial, and a
// quiet-hours-aware delivery-time model for the resulting nudges.
package gap

import (
	"github.com/kittclouds/cogmem/internal/store"
)

// Severity is the closed set of heuristic signal severities.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SignalType tags which heuristic produced a Signal.
type SignalType string

const (
	SignalStaleGoal         SignalType = "stale_goal"
	SignalBehavioralAnomaly SignalType = "behavioral_anomaly"
	SignalUnresolvedThread  SignalType = "unresolved_thread"
	SignalPhrase            SignalType = "phrase_signal"
)

// Signal is one heuristic observation, Stage 1's output (§4.H).
type Signal struct {
	Type        SignalType
	Severity    Severity
	Description string
	Context     map[string]any
	SourceID    string
}

// goalMetadata pulls the §4.H goal fields out of a memory's free-form
// Metadata map. Values the LLM/ingest path never set default to zero
// values, which the stale-goal heuristic treats as "no constraint".
type goalMetadata struct {
	goalType         string
	status           string
	dueDate          int64
	checkinFrequency string
}

func extractGoalMetadata(m store.Memory) goalMetadata {
	g := goalMetadata{}
	if m.Metadata == nil {
		return g
	}
	if v, ok := m.Metadata["goalType"].(string); ok {
		g.goalType = v
	}
	if v, ok := m.Metadata["status"].(string); ok {
		g.status = v
	}
	if v, ok := m.Metadata["dueDate"].(float64); ok {
		g.dueDate = int64(v)
	}
	if v, ok := m.Metadata["checkinFrequency"].(string); ok {
		g.checkinFrequency = v
	}
	return g
}

func checkinFrequencyDays(freq string) float64 {
	switch freq {
	case "daily":
		return 1
	case "weekly":
		return 7
	case "biweekly":
		return 14
	case "monthly":
		return 30
	default:
		return 0
	}
}
