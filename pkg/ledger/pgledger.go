package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"staff-appraisal/internal/db"
	"staff-appraisal/pkg/apperr"
)

// PgLedger applies counter updates with guarded UPDATE statements. Each
// statement takes the row lock, so concurrent callers on the same record
// serialize instead of losing updates.
type PgLedger struct {
	db db.DBTX
}

// NewPgLedger creates a PgLedger.
func NewPgLedger(conn db.DBTX) *PgLedger {
	return &PgLedger{db: conn}
}

func (l *PgLedger) IncrementTaskSubtaskCount(ctx context.Context, taskID string, delta int) (int, error) {
	return l.increment(ctx, "tasks", "task", TaskSubtaskCount, taskID, delta, `
		UPDATE tasks SET subtask_count = subtask_count + $2, updated_at = NOW()
		WHERE id = $1 AND subtask_count + $2 >= 0 AND pending_subtasks_count <= subtask_count + $2
		RETURNING subtask_count`)
}

func (l *PgLedger) IncrementTaskPendingCount(ctx context.Context, taskID string, delta int) (int, error) {
	return l.increment(ctx, "tasks", "task", TaskPendingCount, taskID, delta, `
		UPDATE tasks SET pending_subtasks_count = pending_subtasks_count + $2, updated_at = NOW()
		WHERE id = $1 AND pending_subtasks_count + $2 >= 0 AND pending_subtasks_count + $2 <= subtask_count
		RETURNING pending_subtasks_count`)
}

func (l *PgLedger) IncrementStaffPendingCount(ctx context.Context, staffID string, delta int) (int, error) {
	return l.increment(ctx, "staff", "staff", StaffPendingCount, staffID, delta, `
		UPDATE staff SET pending_count = pending_count + $2
		WHERE id = $1 AND pending_count + $2 >= 0
		RETURNING pending_count`)
}

func (l *PgLedger) IncrementStaffCompletedCount(ctx context.Context, staffID string, delta int) (int, error) {
	return l.increment(ctx, "staff", "staff", StaffCompletedCount, staffID, delta, `
		UPDATE staff SET tasks_completed_count = tasks_completed_count + $2
		WHERE id = $1 AND tasks_completed_count + $2 >= 0
		RETURNING tasks_completed_count`)
}

func (l *PgLedger) SetStaffOverallEfficiency(ctx context.Context, staffID string, value int) error {
	if err := CheckEfficiency(staffID, value); err != nil {
		return err
	}
	tag, err := l.db.Exec(ctx, `UPDATE staff SET overall_efficiency = $2 WHERE id = $1`, staffID, value)
	if err != nil {
		return fmt.Errorf("set overall efficiency %s: %w", staffID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("set overall efficiency", "staff", staffID)
	}
	return nil
}

// increment runs a guarded update. When the guard filters the row out, a
// follow-up read tells a missing record apart from a violated bound.
func (l *PgLedger) increment(ctx context.Context, table, entity, counter, id string, delta int, query string) (int, error) {
	var next int
	err := l.db.QueryRow(ctx, query, id, delta).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment %s %s: %w", counter, id, err)
	}

	var current int
	err = l.db.QueryRow(ctx, `SELECT `+counter+` FROM `+table+` WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("increment "+counter, entity, id)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s %s: %w", counter, id, err)
	}
	if _, err := Apply(counter, id, current, delta); err != nil {
		return current, err
	}
	return current, apperr.InvariantViolation("ledger",
		"%s of %s would break pending <= total (%d%+d)", counter, id, current, delta)
}
