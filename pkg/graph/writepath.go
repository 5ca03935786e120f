package graph

import (
	"github.com/kittclouds/cogmem/internal/store"
	"github.com/kittclouds/cogmem/pkg/cogmemerr"
)

// Store is the narrow slice of internal/store.SQLiteStore the write-path
// policy needs.
type Store interface {
	AddMemory(m store.Memory) (store.Memory, error)
	AddRelation(r store.Relation) (store.Relation, error)
	SupersedeMemory(oldID string, newMemory store.Memory) (store.Memory, error)
}

// Apply writes newMemory according to the classifier's verdict (§4.D
// "Write-path policy"):
//   - NEW: insert memory.
//   - UPDATES: insert, add an UPDATES relation, and supersede the target
//     in the same transaction (delegated to store.SupersedeMemory).
//   - EXTENDS: insert, add an EXTENDS relation; target unchanged.
func Apply(st Store, newMemory store.Memory, c Classification) (store.Memory, error) {
	switch c.Verdict {
	case VerdictUpdates:
		stored, err := st.SupersedeMemory(c.TargetID, newMemory)
		if err != nil {
			return store.Memory{}, cogmemerr.NewStore("graph.applyUpdates", err)
		}
		return stored, nil

	case VerdictExtends:
		stored, err := st.AddMemory(newMemory)
		if err != nil {
			return store.Memory{}, cogmemerr.NewStore("graph.applyExtends.addMemory", err)
		}
		if _, err := st.AddRelation(store.Relation{
			SourceID:     stored.ID,
			TargetID:     c.TargetID,
			RelationType: store.RelationExtends,
			Confidence:   c.Confidence,
		}); err != nil {
			return store.Memory{}, cogmemerr.NewStore("graph.applyExtends.addRelation", err)
		}
		return stored, nil

	default: // NEW
		stored, err := st.AddMemory(newMemory)
		if err != nil {
			return store.Memory{}, cogmemerr.NewStore("graph.applyNew", err)
		}
		return stored, nil
	}
}
