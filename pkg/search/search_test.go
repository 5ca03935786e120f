package search

import (
	"context"
	"testing"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	memories []store.Memory
	patches  map[string]store.MemoryPatch
}

func (f *fakeStore) GetMemoriesByUser(userID string, opts store.MemoryQueryOptions) ([]store.Memory, error) {
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

func (f *fakeStore) UpdateMemory(id string, patch store.MemoryPatch) error {
	if f.patches == nil {
		f.patches = make(map[string]store.MemoryPatch)
	}
	f.patches[id] = patch
	return nil
}

func newFixture() *fakeStore {
	return &fakeStore{
		memories: []store.Memory{
			{ID: "m1", UserID: "u1", Content: "the user drinks dark roast coffee every morning", IsLatest: true, Prominence: 0.9, Importance: 5, UpdatedAt: 300},
			{ID: "m2", UserID: "u1", Content: "quarterly revenue projections for the widget factory", IsLatest: true, Prominence: 0.9, Importance: 5, UpdatedAt: 200},
			{ID: "m3", UserID: "u1", Content: "the user prefers tea over coffee in the afternoon", IsLatest: true, Prominence: 0.9, Importance: 5, UpdatedAt: 100},
		},
	}
}

func TestSearchLexicalHeavyRanksByTextOverlap(t *testing.T) {
	st := newFixture()
	eng := New(st, nil, nil, zerolog.Nop())

	results, err := eng.Search(context.Background(), "coffee preference", Options{
		UserID:   "u1",
		Profile:  ProfileLexicalHeavy,
		MinScore: 0,
		TopK:     10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotEqual(t, "m2", results[0].Memory.ID, "unrelated doc should not rank first")
}

func TestSearchEmptyCandidatesReturnsEmpty(t *testing.T) {
	st := &fakeStore{}
	eng := New(st, nil, nil, zerolog.Nop())

	results, err := eng.Search(context.Background(), "anything", Options{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchBumpsAccessOnReturn(t *testing.T) {
	st := newFixture()
	eng := New(st, nil, nil, zerolog.Nop())

	results, err := eng.Search(context.Background(), "coffee", Options{UserID: "u1", MinScore: 0})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		patch, ok := st.patches[r.Memory.ID]
		require.True(t, ok, "expected access bump for %s", r.Memory.ID)
		require.NotNil(t, patch.AccessCount)
		assert.Equal(t, r.Memory.AccessCount+1, *patch.AccessCount)
	}
}

func TestSearchDropsBelowMinScore(t *testing.T) {
	st := newFixture()
	eng := New(st, nil, nil, zerolog.Nop())

	results, err := eng.Search(context.Background(), "coffee", Options{UserID: "u1", MinScore: 1.1})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVectorOnlyUsesEmbedder(t *testing.T) {
	st := newFixture()
	emb := provider.NewHashEmbedder(64)
	for i, m := range st.memories {
		v, err := emb.Embed(context.Background(), m.Content)
		require.NoError(t, err)
		st.memories[i].Embedding = v
	}
	eng := New(st, emb, nil, zerolog.Nop())

	results, err := eng.Search(context.Background(), "the user prefers tea over coffee in the afternoon", Options{
		UserID:   "u1",
		Profile:  ProfilePureVector,
		MinScore: 0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// m3 has identical embedded content to the query so should be the top vector match.
	assert.Equal(t, "m3", results[0].Memory.ID)
}

type fakeRerankLLM struct {
	order []string
}

func (f *fakeRerankLLM) Complete(ctx context.Context, req provider.CompleteRequest) (provider.CompleteResponse, error) {
	return provider.CompleteResponse{
		Content: []provider.ContentBlock{{Kind: provider.BlockText, Text: `{"order": ["m2", "m1"]}`}},
	}, nil
}

func TestSearchRerankAppliesLLMOrder(t *testing.T) {
	st := newFixture()
	// embedder is nil; lexical-only, but force both candidates to survive minScore 0
	eng := New(st, nil, &fakeRerankLLM{}, zerolog.Nop())

	results, err := eng.Search(context.Background(), "coffee", Options{
		UserID:       "u1",
		MinScore:     0,
		EnableRerank: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// m2 has lowest relevance but the fake LLM puts it first.
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	require.Contains(t, ids, "m2")
	assert.Equal(t, "m2", ids[0])
}
