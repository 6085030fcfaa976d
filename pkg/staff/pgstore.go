package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staff-appraisal/internal/db"
	"staff-appraisal/pkg/apperr"
)

const staffColumns = `id, name, email, role, department_id, workload, pending_count, tasks_completed_count, overall_efficiency, created_at`

// PgStore is a PostgreSQL-backed staff store.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// EnsureTable creates the staff table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS staff (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			email                 TEXT NOT NULL,
			role                  TEXT NOT NULL DEFAULT 'staff',
			department_id         TEXT NOT NULL,
			workload              INTEGER NOT NULL DEFAULT 0 CHECK (workload >= 0),
			pending_count         INTEGER NOT NULL DEFAULT 0 CHECK (pending_count >= 0),
			tasks_completed_count INTEGER NOT NULL DEFAULT 0 CHECK (tasks_completed_count >= 0),
			overall_efficiency    INTEGER NOT NULL DEFAULT 0 CHECK (overall_efficiency BETWEEN 0 AND 100),
			created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS staff_email_idx ON staff(lower(email))`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS staff_department_idx ON staff(department_id)`)
	return err
}

// Register inserts a staff record. A duplicate email is rejected.
func (s *PgStore) Register(ctx context.Context, st *Staff) (*Staff, error) {
	st.ID = uuid.Must(uuid.NewV7()).String()
	st.CreatedAt = time.Now().Truncate(time.Microsecond)
	st.Email = strings.TrimSpace(st.Email)
	st.PendingCount = 0
	st.TasksCompletedCount = 0
	st.OverallEfficiency = 0

	_, err := s.db.Exec(ctx, `
		INSERT INTO staff (id, name, email, role, department_id, workload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.Name, st.Email, string(st.Role), st.DepartmentID, st.Workload, st.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.InvalidInput("register staff", "email %s already exists", st.Email)
		}
		return nil, fmt.Errorf("register staff %s: %w", st.Email, err)
	}
	return st, nil
}

// Get returns a staff record by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Staff, error) {
	return s.scanOne(ctx, "get staff", id, `SELECT `+staffColumns+` FROM staff WHERE id = $1`, id)
}

// Lock returns a staff record with FOR UPDATE.
func (s *PgStore) Lock(ctx context.Context, id string) (*Staff, error) {
	return s.scanOne(ctx, "lock staff", id, `SELECT `+staffColumns+` FROM staff WHERE id = $1 FOR UPDATE`, id)
}

// ByEmail returns a staff record by email, ignoring case.
func (s *PgStore) ByEmail(ctx context.Context, email string) (*Staff, error) {
	return s.scanOne(ctx, "staff by email", email, `SELECT `+staffColumns+` FROM staff WHERE lower(email) = lower($1)`, email)
}

// List returns staff in a department ordered by name.
func (s *PgStore) List(ctx context.Context, departmentID string) ([]Staff, error) {
	if departmentID == "" {
		return s.scanMany(ctx, `SELECT `+staffColumns+` FROM staff ORDER BY name ASC, id ASC`)
	}
	return s.scanMany(ctx, `SELECT `+staffColumns+` FROM staff WHERE department_id = $1 ORDER BY name ASC, id ASC`, departmentID)
}

// Rankings returns staff ordered by overall efficiency.
func (s *PgStore) Rankings(ctx context.Context, departmentID string, limit int) ([]Staff, error) {
	if departmentID == "" {
		return s.scanMany(ctx, `
			SELECT `+staffColumns+` FROM staff WHERE role = 'staff'
			ORDER BY overall_efficiency DESC, tasks_completed_count DESC, id ASC LIMIT $1`, limit)
	}
	return s.scanMany(ctx, `
		SELECT `+staffColumns+` FROM staff WHERE role = 'staff' AND department_id = $1
		ORDER BY overall_efficiency DESC, tasks_completed_count DESC, id ASC LIMIT $2`, departmentID, limit)
}

func (s *PgStore) scanOne(ctx context.Context, op, key, query string, args ...any) (*Staff, error) {
	st, err := scanStaff(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(op, "staff", key)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, key, err)
	}
	return st, nil
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Staff, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var st Staff
	err := row.Scan(&st.ID, &st.Name, &st.Email, &st.Role, &st.DepartmentID, &st.Workload,
		&st.PendingCount, &st.TasksCompletedCount, &st.OverallEfficiency, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
