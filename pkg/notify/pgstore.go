package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staff-appraisal/internal/db"
	"staff-appraisal/pkg/apperr"
)

// PgStore is a PostgreSQL-backed notification store.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// EnsureTable creates the notifications table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			staff_id   TEXT NOT NULL,
			subtask_id TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			read       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_notifications_staff ON notifications(staff_id, created_at DESC)`)
	return err
}

// Create inserts a notification.
func (s *PgStore) Create(ctx context.Context, n *Notification) (*Notification, error) {
	if n.ID == "" {
		n.ID = uuid.Must(uuid.NewV7()).String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().Truncate(time.Microsecond)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, staff_id, subtask_id, type, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.StaffID, n.SubtaskID, string(n.Type), n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ForStaff returns a staff member's notifications, newest first.
func (s *PgStore) ForStaff(ctx context.Context, staffID string, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, staff_id, subtask_id, type, message, read, created_at
		FROM notifications
		WHERE staff_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id DESC LIMIT $3`, staffID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.StaffID, &n.SubtaskID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read.
func (s *PgStore) MarkRead(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("mark notification read", "notification", id)
	}
	return nil
}
