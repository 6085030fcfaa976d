package memstore

import (
	"context"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/ledger"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
)

type ledgerRepo struct {
	at accessor
}

func (r *ledgerRepo) IncrementTaskSubtaskCount(_ context.Context, taskID string, delta int) (int, error) {
	return r.task(taskID, func(t *task.Task) (int, error) {
		next, err := ledger.Apply(ledger.TaskSubtaskCount, taskID, t.SubtaskCount, delta)
		if err != nil {
			return t.SubtaskCount, err
		}
		if err := ledger.CheckPendingBound(taskID, t.PendingSubtasksCount, next); err != nil {
			return t.SubtaskCount, err
		}
		t.SubtaskCount = next
		return next, nil
	})
}

func (r *ledgerRepo) IncrementTaskPendingCount(_ context.Context, taskID string, delta int) (int, error) {
	return r.task(taskID, func(t *task.Task) (int, error) {
		next, err := ledger.Apply(ledger.TaskPendingCount, taskID, t.PendingSubtasksCount, delta)
		if err != nil {
			return t.PendingSubtasksCount, err
		}
		if err := ledger.CheckPendingBound(taskID, next, t.SubtaskCount); err != nil {
			return t.PendingSubtasksCount, err
		}
		t.PendingSubtasksCount = next
		return next, nil
	})
}

func (r *ledgerRepo) IncrementStaffPendingCount(_ context.Context, staffID string, delta int) (int, error) {
	return r.staff(staffID, func(m *staff.Staff) (int, error) {
		next, err := ledger.Apply(ledger.StaffPendingCount, staffID, m.PendingCount, delta)
		if err != nil {
			return m.PendingCount, err
		}
		m.PendingCount = next
		return next, nil
	})
}

func (r *ledgerRepo) IncrementStaffCompletedCount(_ context.Context, staffID string, delta int) (int, error) {
	return r.staff(staffID, func(m *staff.Staff) (int, error) {
		next, err := ledger.Apply(ledger.StaffCompletedCount, staffID, m.TasksCompletedCount, delta)
		if err != nil {
			return m.TasksCompletedCount, err
		}
		m.TasksCompletedCount = next
		return next, nil
	})
}

func (r *ledgerRepo) SetStaffOverallEfficiency(_ context.Context, staffID string, value int) error {
	if err := ledger.CheckEfficiency(staffID, value); err != nil {
		return err
	}
	_, err := r.staff(staffID, func(m *staff.Staff) (int, error) {
		m.OverallEfficiency = value
		return value, nil
	})
	return err
}

// task applies update to a copy of the record and stores it only on success.
func (r *ledgerRepo) task(id string, update func(*task.Task) (int, error)) (int, error) {
	var out int
	err := r.at(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return apperr.NotFound("ledger", "task", id)
		}
		next, err := update(&t)
		out = next
		if err != nil {
			return err
		}
		st.tasks[id] = t
		return nil
	})
	return out, err
}

func (r *ledgerRepo) staff(id string, update func(*staff.Staff) (int, error)) (int, error) {
	var out int
	err := r.at(func(st *state) error {
		m, ok := st.staff[id]
		if !ok {
			return apperr.NotFound("ledger", "staff", id)
		}
		next, err := update(&m)
		out = next
		if err != nil {
			return err
		}
		st.staff[id] = m
		return nil
	})
	return out, err
}
