package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchedulerStore struct {
	items       []store.ScheduledItem
	statusCalls map[string]store.ScheduledItemStatus
	rescheduled map[string]int64
}

func newFakeSchedulerStore(items ...store.ScheduledItem) *fakeSchedulerStore {
	return &fakeSchedulerStore{items: items, statusCalls: map[string]store.ScheduledItemStatus{}, rescheduled: map[string]int64{}}
}

func (f *fakeSchedulerStore) GetDueScheduledItems(asOfMs int64) ([]store.ScheduledItem, error) {
	var out []store.ScheduledItem
	for _, it := range f.items {
		if it.Status == store.StatusPending && it.TriggerAt <= asOfMs {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeSchedulerStore) UpdateScheduledItemStatus(id string, status store.ScheduledItemStatus, incrementAttempts bool) error {
	f.statusCalls[id] = status
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Status = status
			if incrementAttempts {
				f.items[i].Attempts++
			}
		}
	}
	return nil
}

func (f *fakeSchedulerStore) RescheduleItem(id string, nextTriggerAt int64) error {
	f.rescheduled[id] = nextTriggerAt
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].TriggerAt = nextTriggerAt
			f.items[i].Status = store.StatusPending
		}
	}
	return nil
}

type fakeSender struct {
	sent    []string
	succeed bool
	err     error
}

func (f *fakeSender) SendMessage(ctx context.Context, userID, text string) (bool, error) {
	f.sent = append(f.sent, text)
	return f.succeed, f.err
}

type fakeSubAgent struct {
	output string
	err    error
}

func (f *fakeSubAgent) Run(ctx context.Context, goal string, tools []string) (provider.SubAgentResult, error) {
	if f.err != nil {
		return provider.SubAgentResult{}, f.err
	}
	return provider.SubAgentResult{Output: f.output, TaskComplete: true}, nil
}

func TestTickDeliversNudgeAndMarksActed(t *testing.T) {
	st := newFakeSchedulerStore(store.ScheduledItem{ID: "i1", UserID: "u1", Kind: store.KindNudge, Message: "hey", Status: store.StatusPending, TriggerAt: 1000})
	sender := &fakeSender{succeed: true}
	eng := New(st, sender, nil, zerolog.Nop())

	summary := eng.Tick(context.Background(), 2000)
	require.Equal(t, 1, summary.Delivered)
	assert.Equal(t, []string{"hey"}, sender.sent)
	assert.Equal(t, store.StatusActed, st.statusCalls["i1"])
}

func TestTickTaskRunsSubAgentAndPostsOutput(t *testing.T) {
	item := store.ScheduledItem{
		ID: "i1", UserID: "u1", Kind: store.KindTask, Message: "fallback",
		TaskConfig: &store.TaskConfig{Goal: "summarize inbox", Tools: []string{"email"}},
		Status:     store.StatusPending, TriggerAt: 1000,
	}
	st := newFakeSchedulerStore(item)
	sender := &fakeSender{succeed: true}
	sub := &fakeSubAgent{output: "inbox summarized"}
	eng := New(st, sender, sub, zerolog.Nop())

	eng.Tick(context.Background(), 2000)
	assert.Equal(t, []string{"inbox summarized"}, sender.sent)
}

func TestTickTaskFallsBackToMessageWithoutSubAgent(t *testing.T) {
	item := store.ScheduledItem{
		ID: "i1", UserID: "u1", Kind: store.KindTask, Message: "fallback nudge",
		TaskConfig: &store.TaskConfig{Goal: "g"}, Status: store.StatusPending, TriggerAt: 1000,
	}
	st := newFakeSchedulerStore(item)
	sender := &fakeSender{succeed: true}
	eng := New(st, sender, nil, zerolog.Nop())

	eng.Tick(context.Background(), 2000)
	assert.Equal(t, []string{"fallback nudge"}, sender.sent)
}

func TestTickFailedSendKeepsPendingWithBackoff(t *testing.T) {
	st := newFakeSchedulerStore(store.ScheduledItem{ID: "i1", UserID: "u1", Kind: store.KindNudge, Message: "hey", Status: store.StatusPending, TriggerAt: 1000, Attempts: 0})
	sender := &fakeSender{succeed: false}
	eng := New(st, sender, nil, zerolog.Nop())

	summary := eng.Tick(context.Background(), 2000)
	require.Equal(t, 1, summary.Failed)
	assert.Equal(t, store.StatusPending, st.statusCalls["i1"])
	assert.Equal(t, int64(2000+baseBackoff.Milliseconds()), st.rescheduled["i1"])
	assert.Equal(t, 1, st.items[0].Attempts)
}

func TestTickSendErrorAlsoBacksOff(t *testing.T) {
	st := newFakeSchedulerStore(store.ScheduledItem{ID: "i1", UserID: "u1", Kind: store.KindNudge, Message: "hey", Status: store.StatusPending, TriggerAt: 1000})
	sender := &fakeSender{succeed: false, err: errors.New("network down")}
	eng := New(st, sender, nil, zerolog.Nop())

	eng.Tick(context.Background(), 2000)
	assert.Contains(t, st.rescheduled, "i1")
}

func TestTickRecurringEveryReschedulesInsteadOfActed(t *testing.T) {
	item := store.ScheduledItem{
		ID: "i1", UserID: "u1", Kind: store.KindNudge, Message: "daily check-in",
		Status: store.StatusPending, TriggerAt: 1000,
		Recurring: &store.Recurring{Kind: "every", EveryMs: int64(24 * time.Hour / time.Millisecond)},
	}
	st := newFakeSchedulerStore(item)
	sender := &fakeSender{succeed: true}
	eng := New(st, sender, nil, zerolog.Nop())

	eng.Tick(context.Background(), 2000)
	assert.NotContains(t, st.statusCalls, "i1") // never marked acted
	assert.Equal(t, int64(2000+int64(24*time.Hour/time.Millisecond)), st.rescheduled["i1"])
	assert.Equal(t, store.StatusPending, st.items[0].Status)
}

func TestTickIndependentFailureIsolation(t *testing.T) {
	st := newFakeSchedulerStore(
		store.ScheduledItem{ID: "ok", UserID: "u1", Kind: store.KindNudge, Message: "fine", Status: store.StatusPending, TriggerAt: 1000},
		store.ScheduledItem{ID: "bad", UserID: "u1", Kind: store.KindTask, TaskConfig: &store.TaskConfig{Goal: "g"}, Message: "fallback", Status: store.StatusPending, TriggerAt: 1000},
	)
	sender := &fakeSender{succeed: true}
	sub := &fakeSubAgent{err: errors.New("sub-agent crashed")}
	eng := New(st, sender, sub, zerolog.Nop())

	summary := eng.Tick(context.Background(), 2000)
	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, store.StatusActed, st.statusCalls["ok"])
}

func TestComputeNextTriggerMsEvery(t *testing.T) {
	next := ComputeNextTriggerMs(store.Recurring{Kind: "every", EveryMs: 60000}, 1000)
	require.NotNil(t, next)
	assert.Equal(t, int64(61000), *next)
}

func TestComputeNextTriggerMsCron(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	next := ComputeNextTriggerMs(store.Recurring{Kind: "cron", Expr: "0 10 * * *"}, now.UnixMilli())
	require.NotNil(t, next)
	got := time.UnixMilli(*next).UTC()
	assert.Equal(t, 10, got.Hour())
}

func TestComputeNextTriggerMsAtNeverRecurs(t *testing.T) {
	assert.Nil(t, ComputeNextTriggerMs(store.Recurring{Kind: "at"}, 1000))
}

func TestComputeNextTriggerMsInvalidCronExpr(t *testing.T) {
	assert.Nil(t, ComputeNextTriggerMs(store.Recurring{Kind: "cron", Expr: "not a cron"}, 1000))
}
