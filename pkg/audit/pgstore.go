package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staff-appraisal/internal/db"
)

const eventColumns = `id, type, subject_id, actor, content, timestamp, hash, prev_hash`

// chainLockKey names the advisory lock that serializes sealing into the chain.
const chainLockKey = "audit_events_chain"

// PgStore is a PostgreSQL-backed audit Log. Bound to a transaction, its
// appends commit or roll back with the rest of the unit of work.
//
// Appends land in audit_pending without touching the chain, so units of work
// about different records never wait on each other. Flush later seals the
// committed pending rows into audit_events under a single advisory lock.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// EnsureTable creates the audit tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			seq        BIGSERIAL UNIQUE,
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			content    JSONB NOT NULL DEFAULT '{}',
			timestamp  TIMESTAMPTZ NOT NULL,
			hash       TEXT NOT NULL,
			prev_hash  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_events(subject_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
		`CREATE TABLE IF NOT EXISTS audit_pending (
			seq        BIGSERIAL PRIMARY KEY,
			id         TEXT NOT NULL UNIQUE,
			type       TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			actor      TEXT NOT NULL DEFAULT '',
			content    JSONB NOT NULL DEFAULT '{}',
			timestamp  TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

// Append records an event in the pending outbox. The returned event is not
// yet sealed: Hash and PrevHash are filled in by Flush.
func (s *PgStore) Append(ctx context.Context, eventType, subjectID, actor string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Content:   content,
		Timestamp: time.Now().Truncate(time.Microsecond),
	}
	contentJSON, err := json.Marshal(e.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_pending (id, type, subject_id, actor, content, timestamp)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		e.ID, e.Type, e.SubjectID, e.Actor, string(contentJSON), e.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert pending audit event: %w", err)
	}
	return e, nil
}

// Flush seals every committed pending event into the chain, oldest first,
// and returns how many it moved. Concurrent flushes queue on the chain lock.
func Flush(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := db.InTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		n, err = NewPgStore(tx).flush(ctx)
		return err
	})
	return n, err
}

func (s *PgStore) flush(ctx context.Context) (int, error) {
	if _, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, chainLockKey); err != nil {
		return 0, fmt.Errorf("lock audit chain: %w", err)
	}

	var prevHash string
	err := s.db.QueryRow(ctx, `SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("read chain head: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, type, subject_id, actor, content, timestamp
		FROM audit_pending ORDER BY seq ASC`)
	if err != nil {
		return 0, fmt.Errorf("query pending audit events: %w", err)
	}
	var pending []Event
	for rows.Next() {
		var e Event
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.SubjectID, &e.Actor, &contentJSON, &e.Timestamp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan pending audit event: %w", err)
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("unmarshal content: %w", err)
		}
		pending = append(pending, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("pending row iteration: %w", err)
	}

	ids := make([]string, 0, len(pending))
	for i := range pending {
		e := &pending[i]
		if err := Seal(e, prevHash); err != nil {
			return 0, err
		}
		contentJSON, _ := json.Marshal(e.Content)
		_, err := s.db.Exec(ctx, `
			INSERT INTO audit_events (id, type, subject_id, actor, content, timestamp, hash, prev_hash)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)`,
			e.ID, e.Type, e.SubjectID, e.Actor, string(contentJSON), e.Timestamp, e.Hash, e.PrevHash)
		if err != nil {
			return 0, fmt.Errorf("insert audit event: %w", err)
		}
		prevHash = e.Hash
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if _, err := s.db.Exec(ctx, `DELETE FROM audit_pending WHERE id = ANY($1)`, ids); err != nil {
			return 0, fmt.Errorf("clear pending audit events: %w", err)
		}
	}
	return len(ids), nil
}

// Pending returns how many events are waiting to be sealed.
func (s *PgStore) Pending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_pending`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending audit events: %w", err)
	}
	return n, nil
}

// BySubject returns the events about one record in chain order.
func (s *PgStore) BySubject(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+eventColumns+` FROM audit_events WHERE subject_id = $1 ORDER BY seq ASC LIMIT $2`, subjectID, limit)
}

// Recent returns the newest events first.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.scanMany(ctx, `SELECT `+eventColumns+` FROM audit_events ORDER BY seq DESC LIMIT $1`, limit)
}

// Since returns events appended after afterID. An empty afterID starts at
// the beginning of the chain.
func (s *PgStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	if afterID == "" {
		return s.scanMany(ctx, `SELECT `+eventColumns+` FROM audit_events ORDER BY seq ASC LIMIT $1`, limit)
	}
	return s.scanMany(ctx, `
		SELECT `+eventColumns+` FROM audit_events
		WHERE seq > (SELECT seq FROM audit_events WHERE id = $1)
		ORDER BY seq ASC LIMIT $2`, afterID, limit)
}

// Count returns the total number of events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the whole chain in order and checks every link.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()

	var v Verifier
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("verify chain scan: %w", err)
		}
		if err := v.Next(*e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("verify chain rows: %w", err)
	}
	return nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var contentJSON []byte
	if err := row.Scan(&e.ID, &e.Type, &e.SubjectID, &e.Actor, &contentJSON, &e.Timestamp, &e.Hash, &e.PrevHash); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &e, nil
}
