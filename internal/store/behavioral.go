package store

import (
	"database/sql"
	"fmt"
)

// UpsertBehavioralPatterns writes the full rolling signal bundle for a
// user, overwriting whatever was there (§3.4). Each field is
// independently nullable so a caller can persist a partially-computed
// bundle without clobbering fields it didn't touch — callers read the
// existing row first via GetBehavioralPatterns and merge before calling
// this, matching how the gardener's deepTick incrementally updates
// individual signals.
func (s *SQLiteStore) UpsertBehavioralPatterns(bp BehavioralPatterns) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bp.UpdatedAt == 0 {
		bp.UpdatedAt = now()
	}

	freqJSON, err := marshalJSON(bp.MessageFrequency)
	if err != nil {
		return fmt.Errorf("store: marshal message frequency: %w", err)
	}
	engJSON, err := marshalJSON(bp.SessionEngagement)
	if err != nil {
		return fmt.Errorf("store: marshal session engagement: %w", err)
	}
	lenJSON, err := marshalJSON(bp.ResponseLength)
	if err != nil {
		return fmt.Errorf("store: marshal response length: %w", err)
	}
	affectJSON, err := marshalJSON(bp.SmoothedAffect)
	if err != nil {
		return fmt.Errorf("store: marshal smoothed affect: %w", err)
	}
	prefJSON, err := marshalJSON(bp.ResponsePreferences)
	if err != nil {
		return fmt.Errorf("store: marshal response preferences: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO behavioral_patterns (user_id, message_frequency, session_engagement,
			response_length, smoothed_affect, response_preferences, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			message_frequency = excluded.message_frequency,
			session_engagement = excluded.session_engagement,
			response_length = excluded.response_length,
			smoothed_affect = excluded.smoothed_affect,
			response_preferences = excluded.response_preferences,
			updated_at = excluded.updated_at
	`, bp.UserID, freqJSON, engJSON, lenJSON, affectJSON, prefJSON, bp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert behavioral patterns: %w", err)
	}
	return nil
}

// GetBehavioralPatterns fetches the rolling signal bundle for a user,
// returning nil if nothing has been computed yet (cold start, §3.4).
func (s *SQLiteStore) GetBehavioralPatterns(userID string) (*BehavioralPatterns, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT user_id, message_frequency, session_engagement, response_length,
			smoothed_affect, response_preferences, updated_at
		FROM behavioral_patterns WHERE user_id = ?
	`, userID)

	var bp BehavioralPatterns
	var freqJSON, engJSON, lenJSON, affectJSON, prefJSON sql.NullString
	err := row.Scan(&bp.UserID, &freqJSON, &engJSON, &lenJSON, &affectJSON, &prefJSON, &bp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get behavioral patterns: %w", err)
	}

	if freqJSON.Valid {
		bp.MessageFrequency = &MessageFrequency{}
		if err := unmarshalJSON(freqJSON, bp.MessageFrequency); err != nil {
			return nil, err
		}
	}
	if engJSON.Valid {
		bp.SessionEngagement = &SessionEngagement{}
		if err := unmarshalJSON(engJSON, bp.SessionEngagement); err != nil {
			return nil, err
		}
	}
	if lenJSON.Valid {
		bp.ResponseLength = &ResponseLength{}
		if err := unmarshalJSON(lenJSON, bp.ResponseLength); err != nil {
			return nil, err
		}
	}
	if affectJSON.Valid {
		bp.SmoothedAffect = &SmoothedAffect{}
		if err := unmarshalJSON(affectJSON, bp.SmoothedAffect); err != nil {
			return nil, err
		}
	}
	if prefJSON.Valid {
		bp.ResponsePreferences = &ResponsePreferences{}
		if err := unmarshalJSON(prefJSON, bp.ResponsePreferences); err != nil {
			return nil, err
		}
	}
	return &bp, nil
}
