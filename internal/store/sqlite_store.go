// Package store provides SQLite-backed persistence for the cogmem memory
// core. Uses ncruces/go-sqlite3/driver, which provides a database/sql
// interface, exactly as the teacher's note store did.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed data store. Thread-safe for concurrent
// access from the gardener, scheduler, and user-ingest paths.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	dsn string
}

const schema = `
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL,
    memory_type TEXT NOT NULL,
    importance INTEGER NOT NULL DEFAULT 5,
    confidence REAL NOT NULL DEFAULT 1.0,
    is_latest INTEGER NOT NULL DEFAULT 1,
    source TEXT NOT NULL DEFAULT 'user',
    document_date INTEGER NOT NULL,
    event_date INTEGER,
    prominence REAL NOT NULL DEFAULT 1.0,
    last_accessed INTEGER,
    access_count INTEGER NOT NULL DEFAULT 0,
    source_chunk TEXT,
    embedding BLOB,
    metadata TEXT,
    learned_from TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user_latest_type ON memories(user_id, is_latest, memory_type);

CREATE TABLE IF NOT EXISTS memory_relations (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    created_at INTEGER NOT NULL,
    UNIQUE(source_id, target_id, relation_type)
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON memory_relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON memory_relations(target_id);

CREATE TABLE IF NOT EXISTS session_summaries (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    summary TEXT NOT NULL,
    topics TEXT,
    message_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    embedding BLOB,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_summaries_user_created ON session_summaries(user_id, created_at);

CREATE TABLE IF NOT EXISTS behavioral_patterns (
    user_id TEXT PRIMARY KEY,
    message_frequency TEXT,
    session_engagement TEXT,
    response_length TEXT,
    smoothed_affect TEXT,
    response_preferences TEXT,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_items (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    session_id TEXT,
    source TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'nudge',
    type TEXT,
    message TEXT,
    context TEXT,
    trigger_at INTEGER NOT NULL,
    recurring TEXT,
    source_memory_id TEXT,
    task_config TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_items_user_status_trigger ON scheduled_items(user_id, status, trigger_at);

CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    static_facts TEXT,
    dynamic_summary TEXT,
    updated_at INTEGER NOT NULL
);
`

// New creates an in-memory SQLite store ("memory" DSN — the
// :memory:-equivalent semantics §6.2 requires for tests).
func New() (*SQLiteStore, error) {
	return NewWithDSN(":memory:")
}

// NewWithDSN creates a store backed by the given data source name. Use
// ":memory:" for a fresh, non-durable store; a file path for persistent
// storage with WAL enabled.
func NewWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer model; RWMutex serializes above this anyway

	if dsn != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: enable WAL: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLiteStore{db: db, dsn: dsn}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Raw is an escape hatch for trusted callers (tests only), per §4.A.
func (s *SQLiteStore) Raw(query string, args ...any) (*sql.Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Query(query, args...)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	// A typed nil pointer or map marshals to "null"; store it as SQL NULL
	// so it reads back as absent rather than as an empty value.
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), out)
}

func now() int64 {
	return time.Now().UnixMilli()
}
