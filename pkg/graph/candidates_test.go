package graph

import (
	"testing"

	"github.com/kittclouds/cogmem/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestCandidateIndexFindsSharedTokens(t *testing.T) {
	memories := []store.Memory{
		{ID: "m1", Content: "user prefers dark roast coffee", UpdatedAt: 300},
		{ID: "m2", Content: "user works remotely from Denver", UpdatedAt: 200},
		{ID: "m3", Content: "quarterly revenue projections", UpdatedAt: 100},
	}
	idx := BuildCandidateIndex(memories)

	got := idx.Candidates("user loves dark roast espresso", "", 5)
	ids := map[string]bool{}
	for _, m := range got {
		ids[m.ID] = true
	}
	assert.True(t, ids["m1"], "expected m1 (shares 'dark'/'roast') among candidates: %v", got)
	assert.False(t, ids["m3"], "unrelated memory should not be a candidate")
}

func TestCandidateIndexExcludesSelf(t *testing.T) {
	memories := []store.Memory{
		{ID: "m1", Content: "user prefers dark roast coffee", UpdatedAt: 300},
	}
	idx := BuildCandidateIndex(memories)
	got := idx.Candidates("user prefers dark roast coffee", "m1", 5)
	assert.Empty(t, got)
}

func TestCandidateIndexCapsAtK(t *testing.T) {
	memories := []store.Memory{
		{ID: "m1", Content: "coffee lover one", UpdatedAt: 100},
		{ID: "m2", Content: "coffee lover two", UpdatedAt: 200},
		{ID: "m3", Content: "coffee lover three", UpdatedAt: 300},
	}
	idx := BuildCandidateIndex(memories)
	got := idx.Candidates("coffee lover", "", 2)
	assert.Len(t, got, 2)
	// most-recently-updated first
	assert.Equal(t, "m3", got[0].ID)
}
