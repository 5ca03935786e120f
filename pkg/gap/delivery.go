package gap

import (
	"time"

	"github.com/kittclouds/cogmem/pkg/config"
)

// Urgency is the closed set §4.H's delivery-time model branches on.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
)

// ComputeDeliveryTime implements §4.H's delivery-time model: quiet-hours
// avoidance, urgency-based scheduling, a minimum gap from the last
// proactive delivery (bypassed by high urgency), and a hard deferral cap.
func ComputeDeliveryTime(nowMs int64, loc *time.Location, quiet config.QuietHours, urgency Urgency, lastDeliveryMs *int64, proactive config.Proactive) int64 {
	if loc == nil {
		loc = time.UTC
	}
	now := time.UnixMilli(nowMs).In(loc)

	var target time.Time
	inQuiet := !quiet.Disabled() && quiet.In(now.Hour())

	switch {
	case inQuiet:
		target = firstHourAfterQuietEnd(now, quiet)
	case urgency == UrgencyHigh:
		target = now.Add(5 * time.Minute)
	default:
		target = now.Add(15 * time.Minute)
	}

	if urgency != UrgencyHigh && lastDeliveryMs != nil {
		minAllowed := time.UnixMilli(*lastDeliveryMs).Add(proactive.MinGap)
		if target.Before(minAllowed) {
			target = minAllowed
		}
	}

	maxTarget := now.Add(proactive.MaxDeferral)
	if target.After(maxTarget) {
		target = maxTarget
	}

	return target.UnixMilli()
}

func firstHourAfterQuietEnd(now time.Time, quiet config.QuietHours) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), quiet.End, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.Add(24 * time.Hour)
	}
	return candidate
}
