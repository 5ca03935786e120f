package store

import (
	"database/sql"
	"fmt"

	"github.com/kittclouds/cogmem/internal/idgen"
)

// AddScheduledItem inserts a future-dated nudge or task (§3.5).
func (s *SQLiteStore) AddScheduledItem(item ScheduledItem) (ScheduledItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := now()
	if item.ID == "" {
		item.ID = idgen.New()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	item.CreatedAt = t
	item.UpdatedAt = t

	ctxJSON, err := marshalJSON(item.Context)
	if err != nil {
		return ScheduledItem{}, fmt.Errorf("store: marshal scheduled item context: %w", err)
	}
	recurJSON, err := marshalJSON(item.Recurring)
	if err != nil {
		return ScheduledItem{}, fmt.Errorf("store: marshal recurring: %w", err)
	}
	taskJSON, err := marshalJSON(item.TaskConfig)
	if err != nil {
		return ScheduledItem{}, fmt.Errorf("store: marshal task config: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO scheduled_items (id, user_id, session_id, source, kind, type, message,
			context, trigger_at, recurring, source_memory_id, task_config, status, attempts,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.UserID, nullString(item.SessionID), string(item.Source), string(item.Kind),
		item.Type, item.Message, ctxJSON, item.TriggerAt, recurJSON, nullString(item.SourceMemoryID),
		taskJSON, string(item.Status), item.Attempts, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return ScheduledItem{}, fmt.Errorf("store: insert scheduled item: %w", err)
	}
	return item, nil
}

const scheduledSelectCols = `SELECT id, user_id, session_id, source, kind, type, message,
	context, trigger_at, recurring, source_memory_id, task_config, status, attempts,
	created_at, updated_at FROM scheduled_items`

func scanScheduledItem(row scanner) (*ScheduledItem, error) {
	var it ScheduledItem
	var sessionID, sourceMemoryID sql.NullString
	var source, kind, status string
	var ctxJSON, recurJSON, taskJSON sql.NullString

	if err := row.Scan(&it.ID, &it.UserID, &sessionID, &source, &kind, &it.Type, &it.Message,
		&ctxJSON, &it.TriggerAt, &recurJSON, &sourceMemoryID, &taskJSON, &status, &it.Attempts,
		&it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}

	it.SessionID = sessionID.String
	it.SourceMemoryID = sourceMemoryID.String
	it.Source = Source(source)
	it.Kind = ScheduledItemKind(kind)
	it.Status = ScheduledItemStatus(status)

	if err := unmarshalJSON(ctxJSON, &it.Context); err != nil {
		return nil, err
	}
	if recurJSON.Valid {
		it.Recurring = &Recurring{}
		if err := unmarshalJSON(recurJSON, it.Recurring); err != nil {
			return nil, err
		}
	}
	if taskJSON.Valid {
		it.TaskConfig = &TaskConfig{}
		if err := unmarshalJSON(taskJSON, it.TaskConfig); err != nil {
			return nil, err
		}
	}
	return &it, nil
}

// GetPendingScheduledItemsByUser returns pending items due at or before
// asOfMs, ordered by trigger time, for the scheduler's fire loop (§4.I).
func (s *SQLiteStore) GetPendingScheduledItemsByUser(userID string, asOfMs int64) ([]ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(scheduledSelectCols+`
		WHERE user_id = ? AND status = ? AND trigger_at <= ?
		ORDER BY trigger_at ASC, id ASC
	`, userID, string(StatusPending), asOfMs)
	if err != nil {
		return nil, fmt.Errorf("store: query pending scheduled items: %w", err)
	}
	defer rows.Close()

	var out []ScheduledItem
	for rows.Next() {
		it, err := scanScheduledItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan scheduled item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// GetDueScheduledItems returns every user's pending items due at or
// before asOfMs, for the scheduler's cross-user fire tick.
func (s *SQLiteStore) GetDueScheduledItems(asOfMs int64) ([]ScheduledItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(scheduledSelectCols+`
		WHERE status = ? AND trigger_at <= ?
		ORDER BY trigger_at ASC, id ASC
	`, string(StatusPending), asOfMs)
	if err != nil {
		return nil, fmt.Errorf("store: query due scheduled items: %w", err)
	}
	defer rows.Close()

	var out []ScheduledItem
	for rows.Next() {
		it, err := scanScheduledItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan scheduled item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// UpdateScheduledItemStatus transitions an item's status (and bumps
// attempts on a retry) after the scheduler fires it (§4.I).
func (s *SQLiteStore) UpdateScheduledItemStatus(id string, status ScheduledItemStatus, incrementAttempts bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := `UPDATE scheduled_items SET status = ?, updated_at = ?`
	args := []any{string(status), now()}
	if incrementAttempts {
		q += `, attempts = attempts + 1`
	}
	q += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.Exec(q, args...)
	if err != nil {
		return fmt.Errorf("store: update scheduled item status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("store: update scheduled item status: no such id %q", id)
	}
	return nil
}

// RescheduleItem moves a recurring item's trigger_at forward and resets
// it to pending, used after a fired "every"/"cron" item's next
// occurrence is computed (§3.5, SPEC_FULL.md §4.I).
func (s *SQLiteStore) RescheduleItem(id string, nextTriggerAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE scheduled_items SET trigger_at = ?, status = ?, updated_at = ? WHERE id = ?
	`, nextTriggerAt, string(StatusPending), now(), id)
	if err != nil {
		return fmt.Errorf("store: reschedule item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("store: reschedule item: no such id %q", id)
	}
	return nil
}
