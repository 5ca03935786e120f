package store

import (
	"database/sql"
	"fmt"
)

// GetProfile fetches the per-user static/dynamic profile anchor,
// returning nil if the user has none yet (SPEC_FULL.md §3 supplement).
func (s *SQLiteStore) GetProfile(userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT user_id, static_facts, dynamic_summary, updated_at FROM profiles WHERE user_id = ?
	`, userID)

	var p Profile
	var staticFacts, dynamicSummary sql.NullString
	if err := row.Scan(&p.UserID, &staticFacts, &dynamicSummary, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	p.StaticFacts = staticFacts.String
	p.DynamicSummary = dynamicSummary.String
	return &p, nil
}

// UpsertProfile creates or overwrites a user's profile anchor.
func (s *SQLiteStore) UpsertProfile(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdatedAt == 0 {
		p.UpdatedAt = now()
	}

	_, err := s.db.Exec(`
		INSERT INTO profiles (user_id, static_facts, dynamic_summary, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			static_facts = excluded.static_facts,
			dynamic_summary = excluded.dynamic_summary,
			updated_at = excluded.updated_at
	`, p.UserID, nullString(p.StaticFacts), nullString(p.DynamicSummary), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert profile: %w", err)
	}
	return nil
}
