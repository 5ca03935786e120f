package dream

import (
	"context"
	"math/rand"
	"testing"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/config"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDreamStore struct {
	memories     map[string]store.Memory
	relations    map[string][]store.Relation
	fusedCalls   int
	addedRelations []store.Relation
}

func newFakeDreamStore() *fakeDreamStore {
	return &fakeDreamStore{memories: make(map[string]store.Memory), relations: make(map[string][]store.Relation)}
}

func (f *fakeDreamStore) addMemory(m store.Memory) {
	f.memories[m.ID] = m
}

func (f *fakeDreamStore) link(a, b string, relType store.RelationType) {
	rel := store.Relation{SourceID: a, TargetID: b, RelationType: relType}
	f.relations[a] = append(f.relations[a], rel)
	f.relations[b] = append(f.relations[b], rel)
}

func (f *fakeDreamStore) GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error) {
	var out []store.Memory
	for _, m := range f.memories {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDreamStore) GetRelations(memoryID string) ([]store.Relation, error) {
	return f.relations[memoryID], nil
}

func (f *fakeDreamStore) AddRelation(r store.Relation) (store.Relation, error) {
	f.addedRelations = append(f.addedRelations, r)
	f.relations[r.SourceID] = append(f.relations[r.SourceID], r)
	return r, nil
}

func (f *fakeDreamStore) FuseCluster(sourceIDs []string, fused store.Memory) (store.Memory, error) {
	f.fusedCalls++
	fused.ID = "fused-1"
	f.memories[fused.ID] = fused
	for _, id := range sourceIDs {
		m := f.memories[id]
		m.IsLatest = false
		m.MemoryType = store.MemoryTypeSuperseded
		f.memories[id] = m
	}
	return fused, nil
}

type fixedLLM struct{ text string }

func (l *fixedLLM) Complete(ctx context.Context, req provider.CompleteRequest) (provider.CompleteResponse, error) {
	return provider.CompleteResponse{Content: []provider.ContentBlock{{Kind: provider.BlockText, Text: l.text}}}, nil
}

func TestRunNREMConsolidatesConnectedCluster(t *testing.T) {
	st := newFakeDreamStore()
	st.addMemory(store.Memory{ID: "a", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.addMemory(store.Memory{ID: "b", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.addMemory(store.Memory{ID: "c", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.link("a", "b", store.RelationExtends)
	st.link("b", "c", store.RelationExtends)

	llm := &fixedLLM{text: `{"summary": "consolidated insight", "importance": 6, "category": "fact"}`}
	eng := New(st, zerolog.Nop())

	sum := eng.RunNREM(context.Background(), "u1", llm, config.Default().NREM)
	assert.Equal(t, 1, sum.ClustersFound)
	assert.Equal(t, 1, sum.ClustersConsolidated)
	assert.Equal(t, 0, sum.Failures)
	assert.Equal(t, 1, st.fusedCalls)
}

func TestRunNREMSkipsSmallClusters(t *testing.T) {
	st := newFakeDreamStore()
	st.addMemory(store.Memory{ID: "a", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.addMemory(store.Memory{ID: "b", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.link("a", "b", store.RelationExtends)

	llm := &fixedLLM{text: `{"summary": "x", "importance": 5, "category": "fact"}`}
	eng := New(st, zerolog.Nop())

	sum := eng.RunNREM(context.Background(), "u1", llm, config.Default().NREM)
	assert.Equal(t, 0, sum.ClustersFound)
	assert.Equal(t, 0, st.fusedCalls)
}

func TestRunNREMForcesInsightCategoryAcrossCategories(t *testing.T) {
	st := newFakeDreamStore()
	st.addMemory(store.Memory{ID: "a", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.addMemory(store.Memory{ID: "b", UserID: "u1", IsLatest: true, Category: store.CategoryPreference, Prominence: 0.3})
	st.addMemory(store.Memory{ID: "c", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Prominence: 0.3})
	st.link("a", "b", store.RelationExtends)
	st.link("b", "c", store.RelationExtends)

	llm := &fixedLLM{text: `{"summary": "mixed", "importance": 5, "category": "fact"}`}
	eng := New(st, zerolog.Nop())

	eng.RunNREM(context.Background(), "u1", llm, config.Default().NREM)
	require.Equal(t, 1, st.fusedCalls)
	assert.Equal(t, store.CategoryInsight, st.memories["fused-1"].Category)
}

func TestRunREMSkipsDirectlyConnectedCandidates(t *testing.T) {
	st := newFakeDreamStore()
	st.addMemory(store.Memory{ID: "seed", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Importance: 8, Prominence: 0.5})
	st.addMemory(store.Memory{ID: "cand", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Importance: 5, Prominence: 0.5})
	st.link("seed", "cand", store.RelationExtends)
	st.addMemory(store.Memory{ID: "cand2", UserID: "u1", IsLatest: true, Category: store.CategoryFact, Importance: 5, Prominence: 0.5})
	st.link("seed", "cand2", store.RelationExtends)

	llm := &fixedLLM{text: `{"novelty":5,"plausibility":5,"usefulness":5,"connection":"related","confidence":0.9,"noConnection":false}`}
	eng := New(st, zerolog.Nop())
	cfg := config.Default().REM
	cfg.MaxSeeds = 1
	cfg.SeedNoiseSigma = 0

	sum := eng.RunREM(context.Background(), "u1", llm, cfg, rand.New(rand.NewSource(1)))
	assert.Equal(t, 1, sum.SeedsExplored)
	// cand and cand2 are already directly connected to seed, so REM must
	// not re-add a relation to either even though the judge would accept.
	assert.Equal(t, 0, sum.Connections)
	assert.Empty(t, st.addedRelations)
}

func TestRunREMNeverSupersedesOrCreatesMemories(t *testing.T) {
	st := newFakeDreamStore()
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		st.addMemory(store.Memory{ID: id, UserID: "u1", IsLatest: true, Category: store.CategoryFact, Importance: 5, Prominence: 0.3})
	}
	// chain so spreading activation reaches multiple hops without direct seed links
	st.link("a", "b", store.RelationExtends)
	st.link("b", "c", store.RelationExtends)
	st.link("c", "d", store.RelationExtends)

	llm := &fixedLLM{text: `{"novelty":5,"plausibility":5,"usefulness":5,"connection":"related","confidence":0.8,"noConnection":false}`}
	eng := New(st, zerolog.Nop())
	cfg := config.Default().REM
	cfg.MaxSeeds = 8
	cfg.NoiseSigma = 0

	before := len(st.memories)
	eng.RunREM(context.Background(), "u1", llm, cfg, rand.New(rand.NewSource(2)))
	assert.Equal(t, before, len(st.memories), "REM must never create memories")
	for _, m := range st.memories {
		assert.NotEqual(t, store.MemoryTypeSuperseded, m.MemoryType, "REM must never supersede")
	}
}
