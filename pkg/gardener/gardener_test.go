package gardener

import (
	"context"
	"testing"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGardenerStore struct {
	memories        map[string]store.Memory
	relations       map[string][]store.Relation
	summaries       []store.SessionSummary
	behavioral      *store.BehavioralPatterns
	scheduledItems  []store.ScheduledItem
	fusedCalls      int
	updatedMemories map[string]store.MemoryPatch
}

func newFakeGardenerStore() *fakeGardenerStore {
	return &fakeGardenerStore{memories: map[string]store.Memory{}, relations: map[string][]store.Relation{}, updatedMemories: map[string]store.MemoryPatch{}}
}

func (f *fakeGardenerStore) GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error) {
	var out []store.Memory
	for _, m := range f.memories {
		if m.UserID != userID {
			continue
		}
		if opts.IsLatest != nil && m.IsLatest != *opts.IsLatest {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeGardenerStore) UpdateMemory(id string, patch store.MemoryPatch) error {
	f.updatedMemories[id] = patch
	m := f.memories[id]
	if patch.Prominence != nil {
		m.Prominence = *patch.Prominence
	}
	f.memories[id] = m
	return nil
}

func (f *fakeGardenerStore) GetRelations(memoryID string) ([]store.Relation, error) {
	return f.relations[memoryID], nil
}

func (f *fakeGardenerStore) AddRelation(r store.Relation) (store.Relation, error) {
	f.relations[r.SourceID] = append(f.relations[r.SourceID], r)
	return r, nil
}

func (f *fakeGardenerStore) FuseCluster(sourceIDs []string, fused store.Memory) (store.Memory, error) {
	f.fusedCalls++
	fused.ID = "fused-1"
	f.memories[fused.ID] = fused
	return fused, nil
}

func (f *fakeGardenerStore) SessionSummariesSince(userID string, cutoffMs int64) ([]store.SessionSummary, error) {
	var out []store.SessionSummary
	for _, s := range f.summaries {
		if s.UserID == userID && s.CreatedAt >= cutoffMs {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeGardenerStore) GetRecentSessionSummaries(userID string, limit int) ([]store.SessionSummary, error) {
	return f.summaries, nil
}

func (f *fakeGardenerStore) AddMemory(m store.Memory) (store.Memory, error) {
	if m.ID == "" {
		m.ID = "new-mem"
	}
	f.memories[m.ID] = m
	return m, nil
}

func (f *fakeGardenerStore) GetBehavioralPatterns(userID string) (*store.BehavioralPatterns, error) {
	return f.behavioral, nil
}

func (f *fakeGardenerStore) UpsertBehavioralPatterns(bp store.BehavioralPatterns) error {
	f.behavioral = &bp
	return nil
}

func (f *fakeGardenerStore) AddScheduledItem(item store.ScheduledItem) (store.ScheduledItem, error) {
	item.ID = "item-" + string(rune('0'+len(f.scheduledItems)))
	f.scheduledItems = append(f.scheduledItems, item)
	return item, nil
}

type queuedGardenerLLM struct {
	replies []string
	i       int
}

func (q *queuedGardenerLLM) Complete(ctx context.Context, req provider.CompleteRequest) (provider.CompleteResponse, error) {
	if q.i >= len(q.replies) {
		return provider.CompleteResponse{Content: []provider.ContentBlock{{Kind: provider.BlockText, Text: "{}"}}}, nil
	}
	text := q.replies[q.i]
	q.i++
	return provider.CompleteResponse{Content: []provider.ContentBlock{{Kind: provider.BlockText, Text: text}}}, nil
}

func TestLightTickRunsDecaySynchronously(t *testing.T) {
	st := newFakeGardenerStore()
	st.memories["m1"] = store.Memory{ID: "m1", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 1.0, LastAccessed: 0}
	eng := New(st, nil, nil, "", config.Default(), zerolog.Nop())

	summary := eng.LightTick("u1", int64(10*24*60*60*1000))
	require.NotNil(t, summary.Decay)
	assert.Equal(t, "light", summary.Kind)
}

func TestDeepTickSkipsLLMWorkWithoutRecentSummaries(t *testing.T) {
	st := newFakeGardenerStore()
	eng := New(st, &queuedGardenerLLM{}, nil, "", config.Default(), zerolog.Nop())

	summary := eng.DeepTick(context.Background(), "u1", 1000)
	assert.True(t, summary.BehavioralPatternsUpdated)
	assert.False(t, summary.ScheduledItemEmitted)
}

func TestDeepTickUpdatesAffectTrustAndEmitsProactiveItem(t *testing.T) {
	st := newFakeGardenerStore()
	st.summaries = []store.SessionSummary{
		{ID: "s1", UserID: "u1", Summary: "user seemed frustrated with pricing", CreatedAt: 900, MessageCount: 5, DurationMs: 60000},
	}
	llm := &queuedGardenerLLM{replies: []string{
		`{"affect":{"valence":-0.4,"arousal":0.6,"emotion":"frustrated","goalSignal":"seeking clarity"},
		  "trustDelta":0.05,
		  "proactive":{"shouldEmit":true,"urgency":"normal","message":"Want help comparing plans?","gapType":"pricing_confusion","confidence":0.8}}`,
	}}
	eng := New(st, llm, nil, "", config.Default(), zerolog.Nop())

	summary := eng.DeepTick(context.Background(), "u1", 1000)
	require.True(t, summary.BehavioralPatternsUpdated)
	require.True(t, summary.ScheduledItemEmitted)
	require.NotNil(t, st.behavioral.SmoothedAffect)
	assert.Equal(t, "frustrated", st.behavioral.SmoothedAffect.Emotion)
	require.NotNil(t, st.behavioral.ResponsePreferences)
	assert.InDelta(t, 0.55, st.behavioral.ResponsePreferences.TrustScore, 0.001)
	require.Len(t, st.scheduledItems, 1)
	assert.Equal(t, store.KindNudge, st.scheduledItems[0].Kind)
	assert.Equal(t, "proactive_prompt", st.scheduledItems[0].Type)
}

func TestDeepTickLowConfidenceProactiveSuggestionSkipped(t *testing.T) {
	st := newFakeGardenerStore()
	st.summaries = []store.SessionSummary{{ID: "s1", UserID: "u1", Summary: "fine", CreatedAt: 900, MessageCount: 2}}
	llm := &queuedGardenerLLM{replies: []string{
		`{"affect":{"valence":0,"arousal":0.2,"emotion":"neutral","goalSignal":""},
		  "trustDelta":0,
		  "proactive":{"shouldEmit":true,"urgency":"normal","message":"nudge","gapType":"x","confidence":0.2}}`,
	}}
	eng := New(st, llm, nil, "", config.Default(), zerolog.Nop())

	summary := eng.DeepTick(context.Background(), "u1", 1000)
	assert.False(t, summary.ScheduledItemEmitted)
}

func TestSleepTickSkipsOutsideQuietHoursUnlessForced(t *testing.T) {
	st := newFakeGardenerStore()
	cfg := config.Default()
	cfg.QuietHours = config.QuietHours{Start: 22, End: 8}
	eng := New(st, &queuedGardenerLLM{}, nil, "", cfg, zerolog.Nop())

	noon := int64(1000 * 60 * 60 * 12) // 12:00 UTC epoch-relative, well outside 22-8 quiet window
	summary := eng.SleepTick(context.Background(), "u1", noon, false)
	assert.True(t, summary.Skipped)
	assert.Contains(t, summary.SkipReason, "quiet hours")
}

func TestSleepTickForcedRunsEvenOutsideQuietHours(t *testing.T) {
	st := newFakeGardenerStore()
	cfg := config.Default()
	cfg.QuietHours = config.QuietHours{Start: 22, End: 8}
	eng := New(st, &queuedGardenerLLM{}, nil, "", cfg, zerolog.Nop())

	noon := int64(1000 * 60 * 60 * 12)
	summary := eng.SleepTick(context.Background(), "u1", noon, true)
	assert.False(t, summary.Skipped)
}

func TestSleepTickSkipsWhenAlreadyRunning(t *testing.T) {
	st := newFakeGardenerStore()
	eng := New(st, &queuedGardenerLLM{}, nil, "", config.Default(), zerolog.Nop())
	eng.sleeping.Store(true)

	summary := eng.SleepTick(context.Background(), "u1", 1000, true)
	assert.True(t, summary.Skipped)
	assert.Contains(t, summary.SkipReason, "still running")
}

func TestSleepTickGapScanSchedulesFollowUpAndRetainsRest(t *testing.T) {
	st := newFakeGardenerStore()
	st.memories["goal1"] = store.Memory{
		ID: "goal1", UserID: "u1", IsLatest: true, Content: "ship the report", Category: store.CategoryInsight,
		UpdatedAt: -int64(25 * 24 * 60 * 60 * 1000), // 25 days before epoch 0 reference below
		Metadata:  map[string]any{"goalType": "goal", "status": "active"},
	}
	eng := New(st, &queuedGardenerLLM{replies: []string{
		`{"items":[{"index":0,"actionable":true,"confidence":0.9,"diagnosis":"overdue goal","suggestedAction":"check in on the report"}]}`,
	}}, nil, "", config.Default(), zerolog.Nop())

	summary := eng.SleepTick(context.Background(), "u1", 0, true)
	assert.GreaterOrEqual(t, summary.GapSignalsFound, 1)
	assert.Equal(t, 1, summary.GapSignalsScheduled)
	require.Len(t, st.scheduledItems, 1)
	assert.Equal(t, "follow_up", st.scheduledItems[0].Type)
	assert.Empty(t, eng.LastGapSignals())
}

func TestSleepTickRetainsUntriagedSignalsForInspection(t *testing.T) {
	st := newFakeGardenerStore()
	st.memories["goal1"] = store.Memory{
		ID: "goal1", UserID: "u1", IsLatest: true, Content: "ship the report", Category: store.CategoryInsight,
		UpdatedAt: -int64(25 * 24 * 60 * 60 * 1000),
		Metadata:  map[string]any{"goalType": "goal", "status": "active"},
	}
	eng := New(st, &queuedGardenerLLM{replies: []string{
		`{"items":[{"index":0,"actionable":false,"confidence":0.1,"diagnosis":"minor","suggestedAction":""}]}`,
	}}, nil, "", config.Default(), zerolog.Nop())

	eng.SleepTick(context.Background(), "u1", 0, true)
	retained := eng.LastGapSignals()
	require.Len(t, retained, 1)
	assert.Equal(t, "goal1", retained[0].SourceID)
}
