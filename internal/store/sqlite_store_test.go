package store

import (
	"math"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGetMemory(t *testing.T) {
	s := newTestStore(t)

	m := Memory{
		UserID:     "u1",
		Content:    "prefers dark mode",
		Category:   CategoryPreference,
		MemoryType: MemoryTypeRegular,
		Importance: 6,
		IsLatest:   true,
		Source:     SourceUser,
		Embedding:  []float32{0.1, -0.2, 0.3, 0.4},
		Metadata:   map[string]any{"tag": "ui"},
	}

	stored, err := s.AddMemory(m)
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetMemory(stored.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got == nil {
		t.Fatal("expected memory, got nil")
	}
	if got.Content != m.Content {
		t.Errorf("Content = %q, want %q", got.Content, m.Content)
	}
	if got.Category != CategoryPreference {
		t.Errorf("Category = %q, want preference", got.Category)
	}
	if !got.IsLatest {
		t.Error("expected IsLatest true")
	}
	if got.Metadata["tag"] != "ui" {
		t.Errorf("Metadata[tag] = %v, want ui", got.Metadata["tag"])
	}
	if len(got.Embedding) != len(m.Embedding) {
		t.Fatalf("Embedding len = %d, want %d", len(got.Embedding), len(m.Embedding))
	}
	for i := range m.Embedding {
		if math.Abs(float64(got.Embedding[i]-m.Embedding[i])) > 1e-6 {
			t.Errorf("Embedding[%d] = %v, want %v", i, got.Embedding[i], m.Embedding[i])
		}
	}
}

func TestUpdateMemoryPatch(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.AddMemory(Memory{
		UserID:     "u1",
		Content:    "likes espresso",
		Category:   CategoryPreference,
		MemoryType: MemoryTypeRegular,
		IsLatest:   true,
		Source:     SourceUser,
	})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	newProminence := 0.42
	if err := s.UpdateMemory(stored.ID, MemoryPatch{Prominence: &newProminence}); err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}

	got, err := s.GetMemory(stored.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got.Prominence != newProminence {
		t.Errorf("Prominence = %v, want %v", got.Prominence, newProminence)
	}
	if got.Content != "likes espresso" {
		t.Errorf("unrelated field Content mutated: %q", got.Content)
	}
	if got.UpdatedAt < got.CreatedAt {
		t.Error("expected UpdatedAt >= CreatedAt after patch")
	}
}

func TestUpdateMemoryUnknownID(t *testing.T) {
	s := newTestStore(t)
	prom := 0.5
	if err := s.UpdateMemory("does-not-exist", MemoryPatch{Prominence: &prom}); err == nil {
		t.Fatal("expected error updating unknown id")
	}
}

func TestGetMemoriesByUserFiltersAndOrdering(t *testing.T) {
	s := newTestStore(t)

	cat := CategoryFact
	for i, content := range []string{"fact one", "fact two", "fact three"} {
		_, err := s.AddMemory(Memory{
			UserID:     "u1",
			Content:    content,
			Category:   cat,
			MemoryType: MemoryTypeRegular,
			IsLatest:   true,
			Source:     SourceUser,
			Importance: i,
		})
		if err != nil {
			t.Fatalf("AddMemory %d: %v", i, err)
		}
	}
	if _, err := s.AddMemory(Memory{
		UserID: "u2", Content: "other user fact", Category: cat,
		MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser,
	}); err != nil {
		t.Fatalf("AddMemory other user: %v", err)
	}

	got, err := s.GetMemoriesByUser("u1", MemoryQueryOptions{Category: &cat})
	if err != nil {
		t.Fatalf("GetMemoriesByUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 memories for u1, got %d", len(got))
	}
	for _, m := range got {
		if m.UserID != "u1" {
			t.Errorf("leaked memory from user %q", m.UserID)
		}
	}
}

func TestAddRelationRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.AddMemory(Memory{UserID: "u1", Content: "a", Category: CategoryFact, MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser})
	b, _ := s.AddMemory(Memory{UserID: "u1", Content: "b", Category: CategoryFact, MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser})

	if _, err := s.AddRelation(Relation{SourceID: a.ID, TargetID: b.ID, RelationType: RelationExtends}); err != nil {
		t.Fatalf("AddRelation first: %v", err)
	}
	if _, err := s.AddRelation(Relation{SourceID: a.ID, TargetID: b.ID, RelationType: RelationExtends}); err != nil {
		t.Fatalf("AddRelation duplicate should not error: %v", err)
	}

	rels, err := s.GetRelations(a.ID)
	if err != nil {
		t.Fatalf("GetRelations: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation after duplicate insert, got %d", len(rels))
	}
}

func TestSupersedeMemoryIsAtomic(t *testing.T) {
	s := newTestStore(t)

	old, err := s.AddMemory(Memory{
		UserID: "u1", Content: "lives in Austin", Category: CategoryFact,
		MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser,
	})
	if err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	updated, err := s.SupersedeMemory(old.ID, Memory{
		UserID: "u1", Content: "lives in Denver", Category: CategoryFact,
		MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser,
	})
	if err != nil {
		t.Fatalf("SupersedeMemory: %v", err)
	}

	gotOld, err := s.GetMemory(old.ID)
	if err != nil {
		t.Fatalf("GetMemory old: %v", err)
	}
	if gotOld.IsLatest {
		t.Error("expected old memory IsLatest=false after supersession")
	}
	if gotOld.MemoryType != MemoryTypeSuperseded {
		t.Errorf("expected old memory type superseded, got %q", gotOld.MemoryType)
	}

	rels, err := s.GetRelations(updated.ID)
	if err != nil {
		t.Fatalf("GetRelations: %v", err)
	}
	if len(rels) != 1 || rels[0].RelationType != RelationUpdates || rels[0].TargetID != old.ID {
		t.Fatalf("expected one UPDATES edge to %q, got %+v", old.ID, rels)
	}
}

func TestFuseClusterIsAtomic(t *testing.T) {
	s := newTestStore(t)

	var sourceIDs []string
	for _, content := range []string{"went for a run monday", "went for a run wednesday", "went for a run friday"} {
		m, err := s.AddMemory(Memory{
			UserID: "u1", Content: content, Category: CategoryEvent,
			MemoryType: MemoryTypeRegular, IsLatest: true, Source: SourceUser,
		})
		if err != nil {
			t.Fatalf("AddMemory: %v", err)
		}
		sourceIDs = append(sourceIDs, m.ID)
	}

	fused, err := s.FuseCluster(sourceIDs, Memory{
		UserID: "u1", Content: "runs three times a week", Category: CategoryInsight,
		MemoryType: MemoryTypeDerived, IsLatest: true, Source: SourceSystem,
		LearnedFrom: LearnedFromNREMConsolidation,
	})
	if err != nil {
		t.Fatalf("FuseCluster: %v", err)
	}

	rels, err := s.GetRelations(fused.ID)
	if err != nil {
		t.Fatalf("GetRelations: %v", err)
	}
	if len(rels) != len(sourceIDs) {
		t.Fatalf("expected %d DERIVES edges, got %d", len(sourceIDs), len(rels))
	}
	for _, id := range sourceIDs {
		got, err := s.GetMemory(id)
		if err != nil {
			t.Fatalf("GetMemory source: %v", err)
		}
		if got.IsLatest {
			t.Errorf("expected source %q IsLatest=false after fusion", id)
		}
	}
}

func TestScheduledItemLifecycle(t *testing.T) {
	s := newTestStore(t)

	item, err := s.AddScheduledItem(ScheduledItem{
		UserID:    "u1",
		Source:    SourceSystem,
		Kind:      KindNudge,
		Message:   "check in about the job search",
		TriggerAt: 1000,
	})
	if err != nil {
		t.Fatalf("AddScheduledItem: %v", err)
	}

	due, err := s.GetPendingScheduledItemsByUser("u1", 2000)
	if err != nil {
		t.Fatalf("GetPendingScheduledItemsByUser: %v", err)
	}
	if len(due) != 1 || due[0].ID != item.ID {
		t.Fatalf("expected item due, got %+v", due)
	}

	notYetDue, err := s.GetPendingScheduledItemsByUser("u1", 500)
	if err != nil {
		t.Fatalf("GetPendingScheduledItemsByUser: %v", err)
	}
	if len(notYetDue) != 0 {
		t.Fatalf("expected no items due yet, got %d", len(notYetDue))
	}

	if err := s.UpdateScheduledItemStatus(item.ID, StatusActed, false); err != nil {
		t.Fatalf("UpdateScheduledItemStatus: %v", err)
	}
	due, err = s.GetPendingScheduledItemsByUser("u1", 2000)
	if err != nil {
		t.Fatalf("GetPendingScheduledItemsByUser after ack: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no pending items after status update, got %d", len(due))
	}
}

func TestBehavioralPatternsUpsert(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetBehavioralPatterns("u1")
	if err != nil {
		t.Fatalf("GetBehavioralPatterns: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for cold-start user")
	}

	err = s.UpsertBehavioralPatterns(BehavioralPatterns{
		UserID: "u1",
		MessageFrequency: &MessageFrequency{
			DailyRate: 4.5, Trend: TrendIncreasing,
		},
	})
	if err != nil {
		t.Fatalf("UpsertBehavioralPatterns: %v", err)
	}

	got, err = s.GetBehavioralPatterns("u1")
	if err != nil {
		t.Fatalf("GetBehavioralPatterns: %v", err)
	}
	if got == nil || got.MessageFrequency == nil {
		t.Fatal("expected message frequency to round-trip")
	}
	if got.MessageFrequency.Trend != TrendIncreasing {
		t.Errorf("Trend = %q, want increasing", got.MessageFrequency.Trend)
	}
	if got.SessionEngagement != nil {
		t.Error("expected untouched field to stay nil")
	}
}

func TestProfileUpsert(t *testing.T) {
	s := newTestStore(t)

	if p, err := s.GetProfile("u1"); err != nil || p != nil {
		t.Fatalf("expected nil profile, got %+v err=%v", p, err)
	}

	if err := s.UpsertProfile(Profile{UserID: "u1", StaticFacts: "born in 1990"}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	if err := s.UpsertProfile(Profile{UserID: "u1", StaticFacts: "born in 1990", DynamicSummary: "job hunting"}); err != nil {
		t.Fatalf("UpsertProfile update: %v", err)
	}

	p, err := s.GetProfile("u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.DynamicSummary != "job hunting" {
		t.Errorf("DynamicSummary = %q, want %q", p.DynamicSummary, "job hunting")
	}
}
