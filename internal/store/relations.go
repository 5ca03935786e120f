package store

import (
	"fmt"

	"github.com/kittclouds/cogmem/internal/idgen"
)

// AddRelation inserts a typed edge, rejecting an exact duplicate
// (source, target, type) per §3.2's uniqueness invariant. A duplicate
// is a silent no-op rather than an error: nothing is written, and the
// returned Relation is the input with defaults filled in, not the
// stored edge.
func (s *SQLiteStore) AddRelation(r Relation) (Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRelationTx(s.db, r)
}

func (s *SQLiteStore) addRelationTx(ex execer, r Relation) (Relation, error) {
	if r.ID == "" {
		r.ID = idgen.New()
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = now()
	}
	if r.Confidence == 0 {
		r.Confidence = 1.0
	}

	_, err := ex.Exec(`
		INSERT INTO memory_relations (id, source_id, target_id, relation_type, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation_type) DO NOTHING
	`, r.ID, r.SourceID, r.TargetID, string(r.RelationType), r.Confidence, r.CreatedAt)
	if err != nil {
		return Relation{}, fmt.Errorf("store: insert relation: %w", err)
	}
	return r, nil
}

// GetRelations returns every edge touching memoryID, in either
// direction, newest first (§4.A, feeds spreading activation's adjacency
// lookups).
func (s *SQLiteStore) GetRelations(memoryID string) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, relation_type, confidence, created_at
		FROM memory_relations
		WHERE source_id = ? OR target_id = ?
		ORDER BY created_at DESC, id ASC
	`, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("store: query relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		var relType string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &relType, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan relation: %w", err)
		}
		r.RelationType = RelationType(relType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRelationsByType returns only edges of the given type touching
// memoryID, used by the graph package to restrict spreading activation
// to a subset of edge types (SPEC_FULL.md §4.D).
func (s *SQLiteStore) GetRelationsByType(memoryID string, relType RelationType) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, relation_type, confidence, created_at
		FROM memory_relations
		WHERE (source_id = ? OR target_id = ?) AND relation_type = ?
		ORDER BY created_at DESC, id ASC
	`, memoryID, memoryID, string(relType))
	if err != nil {
		return nil, fmt.Errorf("store: query relations by type: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		var rt string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &rt, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan relation: %w", err)
		}
		r.RelationType = RelationType(rt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRelation removes a single edge by id. Removing an id that does
// not exist is not an error.
func (s *SQLiteStore) DeleteRelation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM memory_relations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete relation: %w", err)
	}
	return nil
}

// SupersedeMemory performs the UPDATES write-path atomically: marks
// oldID as superseded and not latest, inserts newMemory, and records
// the UPDATES edge, all within a single transaction (§9's
// transactional-boundary decision, recorded in DESIGN.md).
func (s *SQLiteStore) SupersedeMemory(oldID string, newMemory Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Memory{}, fmt.Errorf("store: begin supersede tx: %w", err)
	}
	defer tx.Rollback()

	isLatest := false
	memType := MemoryTypeSuperseded
	if err := s.updateMemoryTx(tx, oldID, MemoryPatch{IsLatest: &isLatest, MemoryType: &memType}); err != nil {
		return Memory{}, err
	}

	stored, err := s.addMemoryTx(tx, newMemory)
	if err != nil {
		return Memory{}, err
	}

	if _, err := s.addRelationTx(tx, Relation{
		SourceID:     stored.ID,
		TargetID:     oldID,
		RelationType: RelationUpdates,
	}); err != nil {
		return Memory{}, err
	}

	if err := tx.Commit(); err != nil {
		return Memory{}, fmt.Errorf("store: commit supersede tx: %w", err)
	}
	return stored, nil
}

// FuseCluster performs the NREM write-path atomically: inserts the
// fused memory, links it to every source memory with a DERIVES edge,
// and marks every source as superseded so it drops out of latest-only
// reads, all within one transaction (§4.F, §9).
func (s *SQLiteStore) FuseCluster(sourceIDs []string, fused Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Memory{}, fmt.Errorf("store: begin fuse tx: %w", err)
	}
	defer tx.Rollback()

	stored, err := s.addMemoryTx(tx, fused)
	if err != nil {
		return Memory{}, err
	}

	isLatest := false
	memType := MemoryTypeSuperseded
	for _, srcID := range sourceIDs {
		if _, err := s.addRelationTx(tx, Relation{
			SourceID:     stored.ID,
			TargetID:     srcID,
			RelationType: RelationDerives,
		}); err != nil {
			return Memory{}, err
		}
		if err := s.updateMemoryTx(tx, srcID, MemoryPatch{IsLatest: &isLatest, MemoryType: &memType}); err != nil {
			return Memory{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Memory{}, fmt.Errorf("store: commit fuse tx: %w", err)
	}
	return stored, nil
}
