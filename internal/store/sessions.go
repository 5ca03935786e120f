package store

import (
	"fmt"
	"strings"

	"github.com/kittclouds/cogmem/internal/idgen"
)

// AddSessionSummary inserts an immutable session-summary record (§3.3),
// digested later by the reflection package into insight memories.
func (s *SQLiteStore) AddSessionSummary(ss SessionSummary) (SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss.ID == "" {
		ss.ID = idgen.New()
	}
	if ss.CreatedAt == 0 {
		ss.CreatedAt = now()
	}

	embBlob, err := encodeEmbedding(ss.Embedding)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("store: encode session embedding: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO session_summaries (id, session_id, user_id, summary, topics,
			message_count, duration_ms, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ss.ID, ss.SessionID, ss.UserID, ss.Summary, strings.Join(ss.Topics, "\x1f"),
		ss.MessageCount, ss.DurationMs, nullBlob(embBlob), ss.CreatedAt)
	if err != nil {
		return SessionSummary{}, fmt.Errorf("store: insert session summary: %w", err)
	}
	return ss, nil
}

// GetRecentSessionSummaries returns the most recent summaries for a
// user, newest first, bounded by limit (0 means unbounded). Feeds
// self-reflection's digestion window (§4.G) and the gap scanner's
// unresolved-thread heuristic (§4.H).
func (s *SQLiteStore) GetRecentSessionSummaries(userID string, limit int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, session_id, user_id, summary, topics, message_count, duration_ms, embedding, created_at
		FROM session_summaries WHERE user_id = ? ORDER BY created_at DESC, id ASC`
	args := []any{userID}
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query session summaries: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var topics string
		var embedding []byte
		if err := rows.Scan(&ss.ID, &ss.SessionID, &ss.UserID, &ss.Summary, &topics,
			&ss.MessageCount, &ss.DurationMs, &embedding, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session summary: %w", err)
		}
		if topics != "" {
			ss.Topics = strings.Split(topics, "\x1f")
		}
		ss.Embedding = decodeEmbedding(embedding)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// SessionSummariesSince returns summaries created at or after cutoffMs,
// oldest first. The gardener's gap scan uses it to bound the
// unresolved-thread and phrase scans to a recent window (SPEC_FULL.md
// §4.H), and self-reflection to load its digestion window.
func (s *SQLiteStore) SessionSummariesSince(userID string, cutoffMs int64) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, session_id, user_id, summary, topics, message_count, duration_ms, embedding, created_at
		FROM session_summaries WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC
	`, userID, cutoffMs)
	if err != nil {
		return nil, fmt.Errorf("store: query session summaries since: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var topics string
		var embedding []byte
		if err := rows.Scan(&ss.ID, &ss.SessionID, &ss.UserID, &ss.Summary, &topics,
			&ss.MessageCount, &ss.DurationMs, &embedding, &ss.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session summary: %w", err)
		}
		if topics != "" {
			ss.Topics = strings.Split(topics, "\x1f")
		}
		ss.Embedding = decodeEmbedding(embedding)
		out = append(out, ss)
	}
	return out, rows.Err()
}
