package store

import (
	"database/sql"
	"fmt"

	"github.com/kittclouds/cogmem/internal/idgen"
)

// AddMemory assigns an id, stamps timestamps, and inserts the memory,
// returning the stored record (§4.A).
func (s *SQLiteStore) AddMemory(m Memory) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMemoryTx(s.db, m)
}

// addMemoryTx inserts within any *sql.DB/*sql.Tx, letting multi-row
// writers (NREM fusion, UPDATES supersession) share one transaction.
func (s *SQLiteStore) addMemoryTx(ex execer, m Memory) (Memory, error) {
	t := now()
	if m.ID == "" {
		m.ID = idgen.New()
	}
	m.CreatedAt = t
	m.UpdatedAt = t
	if m.DocumentDate == 0 {
		m.DocumentDate = t
	}
	if m.Prominence == 0 {
		m.Prominence = 1.0
	}
	if m.Confidence == 0 {
		m.Confidence = 1.0
	}

	embBlob, err := encodeEmbedding(m.Embedding)
	if err != nil {
		return Memory{}, fmt.Errorf("store: encode embedding: %w", err)
	}
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return Memory{}, fmt.Errorf("store: marshal metadata: %w", err)
	}

	_, err = ex.Exec(`
		INSERT INTO memories (id, user_id, content, category, memory_type, importance,
			confidence, is_latest, source, document_date, event_date, prominence,
			last_accessed, access_count, source_chunk, embedding, metadata, learned_from,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Content, string(m.Category), string(m.MemoryType), m.Importance,
		m.Confidence, boolToInt(m.IsLatest), string(m.Source), m.DocumentDate, nullableInt64(m.EventDate),
		m.Prominence, nullZeroInt64(m.LastAccessed), m.AccessCount, nullString(m.SourceChunk),
		nullBlob(embBlob), metaJSON, nullString(string(m.LearnedFrom)), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return Memory{}, fmt.Errorf("store: insert memory: %w", err)
	}
	return m, nil
}

// UpdateMemory applies a partial patch, bumping updatedAt. Content hash
// (the row's identity) is never mutated by a patch (§4.A).
func (s *SQLiteStore) UpdateMemory(id string, patch MemoryPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateMemoryTx(s.db, id, patch)
}

func (s *SQLiteStore) updateMemoryTx(ex execer, id string, patch MemoryPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{now()}

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*patch.Category))
	}
	if patch.MemoryType != nil {
		sets = append(sets, "memory_type = ?")
		args = append(args, string(*patch.MemoryType))
	}
	if patch.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, *patch.Importance)
	}
	if patch.Confidence != nil {
		sets = append(sets, "confidence = ?")
		args = append(args, *patch.Confidence)
	}
	if patch.IsLatest != nil {
		sets = append(sets, "is_latest = ?")
		args = append(args, boolToInt(*patch.IsLatest))
	}
	if patch.Prominence != nil {
		sets = append(sets, "prominence = ?")
		args = append(args, *patch.Prominence)
	}
	if patch.LastAccessed != nil {
		sets = append(sets, "last_accessed = ?")
		args = append(args, *patch.LastAccessed)
	}
	if patch.AccessCount != nil {
		sets = append(sets, "access_count = ?")
		args = append(args, *patch.AccessCount)
	}
	if patch.Embedding != nil {
		blob, err := encodeEmbedding(patch.Embedding)
		if err != nil {
			return fmt.Errorf("store: encode embedding: %w", err)
		}
		sets = append(sets, "embedding = ?")
		args = append(args, blob)
	}
	if patch.Metadata != nil {
		metaJSON, err := marshalJSON(patch.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata: %w", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, metaJSON)
	}
	if patch.LearnedFrom != nil {
		sets = append(sets, "learned_from = ?")
		args = append(args, string(*patch.LearnedFrom))
	}

	q := "UPDATE memories SET "
	for i, set := range sets {
		if i > 0 {
			q += ", "
		}
		q += set
	}
	q += " WHERE id = ?"
	args = append(args, id)

	res, err := ex.Exec(q, args...)
	if err != nil {
		return fmt.Errorf("store: update memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("store: update memory: no such id %q", id)
	}
	return nil
}

// GetMemory fetches a single memory by id.
func (s *SQLiteStore) GetMemory(id string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(memorySelectCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get memory: %w", err)
	}
	return m, nil
}

// GetMemoriesByUser returns memories filtered by opts, ordered
// deterministically by updatedAt DESC, ties by id (§4.A).
func (s *SQLiteStore) GetMemoriesByUser(userID string, opts MemoryQueryOptions) ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := memorySelectCols + ` FROM memories WHERE user_id = ?`
	args := []any{userID}

	if opts.IsLatest != nil {
		q += ` AND is_latest = ?`
		args = append(args, boolToInt(*opts.IsLatest))
	}
	if opts.MinProminence != nil {
		q += ` AND prominence >= ?`
		args = append(args, *opts.MinProminence)
	}
	if opts.Category != nil {
		q += ` AND category = ?`
		args = append(args, string(*opts.Category))
	}
	if opts.MemoryType != nil {
		q += ` AND memory_type = ?`
		args = append(args, string(*opts.MemoryType))
	}
	q += ` ORDER BY updated_at DESC, id ASC`
	if opts.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// HardDeleteMemory permanently removes a memory and cascades its
// relations. Never called automatically by the decay engine — an
// operator escape hatch preserving the auditability tradeoff described
// in §9's Open Questions.
func (s *SQLiteStore) HardDeleteMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM memory_relations WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

const memorySelectCols = `SELECT id, user_id, content, category, memory_type, importance,
	confidence, is_latest, source, document_date, event_date, prominence,
	last_accessed, access_count, source_chunk, embedding, metadata, learned_from,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*Memory, error) {
	var m Memory
	var category, memoryType, source, learnedFrom string
	var eventDate, lastAccessed sql.NullInt64
	var sourceChunk sql.NullString
	var embedding []byte
	var metaJSON sql.NullString
	var learnedFromNS sql.NullString
	_ = learnedFrom

	var isLatest int
	if err := row.Scan(
		&m.ID, &m.UserID, &m.Content, &category, &memoryType, &m.Importance,
		&m.Confidence, &isLatest, &source, &m.DocumentDate, &eventDate, &m.Prominence,
		&lastAccessed, &m.AccessCount, &sourceChunk, &embedding, &metaJSON, &learnedFromNS,
		&m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Category = Category(category)
	m.MemoryType = MemoryType(memoryType)
	m.Source = Source(source)
	m.IsLatest = isLatest != 0
	if eventDate.Valid {
		m.EventDate = &eventDate.Int64
	}
	if lastAccessed.Valid {
		m.LastAccessed = lastAccessed.Int64
	}
	if sourceChunk.Valid {
		m.SourceChunk = sourceChunk.String
	}
	m.Embedding = decodeEmbedding(embedding)
	if learnedFromNS.Valid {
		m.LearnedFrom = LearnedFrom(learnedFromNS.String)
	}
	if err := unmarshalJSON(metaJSON, &m.Metadata); err != nil {
		return nil, err
	}
	return &m, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting the Tx-scoped
// helpers above run inside either a standalone call or a larger
// transaction (§4.A, §9's transactional-boundary resolution).
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullZeroInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
