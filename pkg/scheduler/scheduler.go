// Package scheduler implements §4.I: a single periodic evaluation that
// fires due scheduled items into an externally supplied send handler,
// with exponential back-off on failure and cron/interval re-scheduling
// for recurring items. Grounded on beeper-ai-bridge's pkg/cron package
// (ComputeNextRunAtMs's kind-switch shape), generalized from job-polling
// to nudge/task delivery.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
)

// Store is the scheduler's persistence dependency.
type Store interface {
	GetDueScheduledItems(asOfMs int64) ([]store.ScheduledItem, error)
	UpdateScheduledItemStatus(id string, status store.ScheduledItemStatus, incrementAttempts bool) error
	RescheduleItem(id string, nextTriggerAt int64) error
}

// baseBackoff and maxBackoff bound the exponential retry delay applied
// to a failed delivery's next trigger time.
const (
	baseBackoff = time.Minute
	maxBackoff  = 6 * time.Hour
)

// Engine fires due scheduled items on each Tick.
type Engine struct {
	store    Store
	sender   provider.MessageSender
	subAgent provider.SubAgent // optional; nil falls back to nudge-like send
	log      zerolog.Logger
}

// New constructs a scheduler engine. subAgent may be nil.
func New(st Store, sender provider.MessageSender, subAgent provider.SubAgent, log zerolog.Logger) *Engine {
	return &Engine{store: st, sender: sender, subAgent: subAgent, log: log.With().Str("component", "scheduler").Logger()}
}

// Outcome records what happened to one fired item, for test assertions
// and tick summaries.
type Outcome struct {
	ItemID    string
	Delivered bool
	Err       error
}

// Summary aggregates one Tick's outcomes.
type Summary struct {
	Evaluated int
	Delivered int
	Failed    int
	Outcomes  []Outcome
}

// Tick loads every pending item due at or before nowMs and attempts
// delivery for each, independently. A failure in one item's delivery
// never blocks the others (§4.I step 5, §5 error isolation).
func (e *Engine) Tick(ctx context.Context, nowMs int64) Summary {
	items, err := e.store.GetDueScheduledItems(nowMs)
	if err != nil {
		e.log.Error().Err(err).Msg("load due scheduled items")
		return Summary{}
	}

	summary := Summary{Evaluated: len(items)}
	for _, item := range items {
		select {
		case <-ctx.Done():
			return summary
		default:
		}

		outcome := e.fire(ctx, item, nowMs)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Delivered {
			summary.Delivered++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func (e *Engine) fire(ctx context.Context, item store.ScheduledItem, nowMs int64) Outcome {
	text, err := e.resolveMessage(ctx, item)
	if err != nil {
		e.log.Warn().Err(err).Str("itemId", item.ID).Msg("resolve scheduled item message")
		e.backoff(item, nowMs)
		return Outcome{ItemID: item.ID, Err: err}
	}

	ok, err := e.sender.SendMessage(ctx, item.UserID, text)
	if err != nil || !ok {
		e.log.Warn().Err(err).Str("itemId", item.ID).Msg("send scheduled item")
		e.backoff(item, nowMs)
		return Outcome{ItemID: item.ID, Err: err}
	}

	if item.Recurring != nil {
		if next := ComputeNextTriggerMs(*item.Recurring, nowMs); next != nil {
			if err := e.store.RescheduleItem(item.ID, *next); err != nil {
				e.log.Error().Err(err).Str("itemId", item.ID).Msg("reschedule recurring item")
			}
			return Outcome{ItemID: item.ID, Delivered: true}
		}
	}

	if err := e.store.UpdateScheduledItemStatus(item.ID, store.StatusActed, false); err != nil {
		e.log.Error().Err(err).Str("itemId", item.ID).Msg("mark scheduled item acted")
	}
	return Outcome{ItemID: item.ID, Delivered: true}
}

// resolveMessage implements §4.I steps 3-4: a nudge sends its stored
// message verbatim; a task runs the sub-agent and posts its output,
// falling back to the stored message when no sub-agent is configured.
func (e *Engine) resolveMessage(ctx context.Context, item store.ScheduledItem) (string, error) {
	if item.Kind != store.KindTask || item.TaskConfig == nil {
		return item.Message, nil
	}
	if e.subAgent == nil {
		return item.Message, nil
	}
	result, err := e.subAgent.Run(ctx, item.TaskConfig.Goal, item.TaskConfig.Tools)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// backoff applies exponential delay (capped at maxBackoff) based on the
// item's attempt count and leaves it pending for the next evaluation.
func (e *Engine) backoff(item store.ScheduledItem, nowMs int64) {
	delay := baseBackoff << uint(item.Attempts)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	next := nowMs + delay.Milliseconds()
	if err := e.store.RescheduleItem(item.ID, next); err != nil {
		e.log.Error().Err(err).Str("itemId", item.ID).Msg("reschedule after failed delivery")
		return
	}
	if err := e.store.UpdateScheduledItemStatus(item.ID, store.StatusPending, true); err != nil {
		e.log.Error().Err(err).Str("itemId", item.ID).Msg("increment attempts after failed delivery")
	}
}

// ComputeNextTriggerMs returns a recurring item's next fire time in
// unix ms, generalized from beeper-ai-bridge's ComputeNextRunAtMs.
// Kind "at" never recurs once fired; "every" advances by a fixed
// interval; "cron" parses a standard five-field cron expression in the
// given (or UTC) timezone.
func ComputeNextTriggerMs(r store.Recurring, nowMs int64) *int64 {
	switch r.Kind {
	case "every":
		everyMs := r.EveryMs
		if everyMs < 1 {
			everyMs = 1
		}
		next := nowMs + everyMs
		return &next
	case "cron":
		if r.Expr == "" {
			return nil
		}
		loc := time.UTC
		if r.TZ != "" {
			if l, err := time.LoadLocation(r.TZ); err == nil {
				loc = l
			}
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		sched, err := parser.Parse(r.Expr)
		if err != nil {
			return nil
		}
		next := sched.Next(time.UnixMilli(nowMs).In(loc)).UTC().UnixMilli()
		return &next
	default:
		return nil
	}
}
