// Package ledger keeps the denormalized counters on tasks and staff records
// consistent with the subtasks beneath them.
//
// Every operation is a single guarded read-modify-write that either applies in
// full or fails without touching the record. Callers run ledger operations
// inside the same transaction as the lifecycle change they account for, so a
// failure anywhere rolls every counter back together.
package ledger

import (
	"context"

	"staff-appraisal/pkg/apperr"
)

// Ledger is the contract for counter updates. Increment methods return the
// counter's new value.
type Ledger interface {
	IncrementTaskSubtaskCount(ctx context.Context, taskID string, delta int) (int, error)
	IncrementTaskPendingCount(ctx context.Context, taskID string, delta int) (int, error)
	IncrementStaffPendingCount(ctx context.Context, staffID string, delta int) (int, error)
	IncrementStaffCompletedCount(ctx context.Context, staffID string, delta int) (int, error)
	SetStaffOverallEfficiency(ctx context.Context, staffID string, value int) error
}

// Counter names used in error messages.
const (
	TaskSubtaskCount    = "subtask_count"
	TaskPendingCount    = "pending_subtasks_count"
	StaffPendingCount   = "pending_count"
	StaffCompletedCount = "tasks_completed_count"
)

// Apply returns current+delta, or an InvariantViolation when the result
// would be negative.
func Apply(counter, id string, current, delta int) (int, error) {
	next := current + delta
	if next < 0 {
		return current, apperr.InvariantViolation("ledger",
			"%s of %s would drop below zero (%d%+d)", counter, id, current, delta)
	}
	return next, nil
}

// CheckPendingBound fails when a task would have more pending subtasks than
// subtasks in total.
func CheckPendingBound(taskID string, pending, total int) error {
	if pending > total {
		return apperr.InvariantViolation("ledger",
			"%s of %s would exceed %s (%d > %d)", TaskPendingCount, taskID, TaskSubtaskCount, pending, total)
	}
	return nil
}

// CheckEfficiency fails for an overall efficiency outside [0,100].
func CheckEfficiency(staffID string, value int) error {
	if value < 0 || value > 100 {
		return apperr.InvariantViolation("ledger",
			"overall efficiency %d for %s outside [0,100]", value, staffID)
	}
	return nil
}
