package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

func seed(t *testing.T, s *Store) (*task.Task, *staff.Staff) {
	t.Helper()
	var tk *task.Task
	var member *staff.Staff
	err := s.InTx(context.Background(), func(ctx context.Context, r workflow.Repos) error {
		var err error
		tk, err = r.Tasks.CreateTask(ctx, &task.Task{Name: "Audit", DueDate: time.Now().Add(48 * time.Hour), DepartmentID: "d1"})
		if err != nil {
			return err
		}
		member, err = r.Staff.Register(ctx, &staff.Staff{Name: "Ada", Email: "ada@example.com", Role: staff.RoleStaff, DepartmentID: "d1"})
		return err
	})
	require.NoError(t, err)
	return tk, member
}

func TestInTxCommits(t *testing.T) {
	s := New()
	tk, member := seed(t, s)

	got, err := s.Reads().Tasks.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Audit", got.Name)

	m, err := s.Reads().Staff.ByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, member.ID, m.ID)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	tk, member := seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, r workflow.Repos) error {
		if _, err := r.Ledger.IncrementTaskSubtaskCount(ctx, tk.ID, 1); err != nil {
			return err
		}
		if _, err := r.Ledger.IncrementStaffPendingCount(ctx, member.ID, 1); err != nil {
			return err
		}
		if _, err := r.Audit.Append(ctx, "test", tk.ID, "", nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Reads().Tasks.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Zero(t, got.SubtaskCount)
	m, err := s.Reads().Staff.Get(ctx, member.ID)
	require.NoError(t, err)
	assert.Zero(t, m.PendingCount)
	n, err := s.Reads().Audit.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedgerGuards(t *testing.T) {
	s := New()
	tk, member := seed(t, s)
	ctx := context.Background()
	l := s.Reads().Ledger

	_, err := l.IncrementStaffPendingCount(ctx, member.ID, -1)
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)

	_, err = l.IncrementTaskPendingCount(ctx, tk.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation, "pending may not exceed subtask count")

	_, err = l.IncrementTaskSubtaskCount(ctx, "missing", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, l.SetStaffOverallEfficiency(ctx, member.ID, 101), apperr.ErrInvariantViolation)
	assert.ErrorIs(t, l.SetStaffOverallEfficiency(ctx, "missing", 50), apperr.ErrNotFound)

	n, err := l.IncrementTaskSubtaskCount(ctx, tk.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = l.IncrementTaskPendingCount(ctx, tk.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = l.IncrementTaskSubtaskCount(ctx, tk.ID, -1)
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation, "total may not drop below pending")

	got, err := s.Reads().Tasks.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SubtaskCount)
	assert.Equal(t, 2, got.PendingSubtasksCount)
}

func TestAuditChain(t *testing.T) {
	s := New()
	tk, _ := seed(t, s)
	ctx := context.Background()
	a := s.Reads().Audit

	first, err := a.Append(ctx, "task.created", tk.ID, "hod", map[string]any{"name": "Audit"})
	require.NoError(t, err)
	second, err := a.Append(ctx, "task.completed", tk.ID, "hod", nil)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)

	require.NoError(t, a.VerifyChain(ctx))

	since, err := a.Since(ctx, first.ID, 10)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, second.ID, since[0].ID)

	recent, err := a.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	s.state.events[0].Actor = "someone else"
	assert.Error(t, a.VerifyChain(ctx))
}

func TestDuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s)
	_, err := s.Reads().Staff.Register(context.Background(), &staff.Staff{Name: "Other", Email: "Ada@Example.com", DepartmentID: "d1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestNotifications(t *testing.T) {
	n := NewNotifications()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	old, err := n.Create(ctx, &notify.Notification{StaffID: "s1", Message: "old", CreatedAt: base})
	require.NoError(t, err)
	_, err = n.Create(ctx, &notify.Notification{StaffID: "s1", Message: "new", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = n.Create(ctx, &notify.Notification{StaffID: "s2", Message: "other"})
	require.NoError(t, err)

	list, err := n.ForStaff(ctx, "s1", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Message)

	require.NoError(t, n.MarkRead(ctx, old.ID))
	unread, err := n.ForStaff(ctx, "s1", true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "new", unread[0].Message)

	assert.ErrorIs(t, n.MarkRead(ctx, "missing"), apperr.ErrNotFound)
}

func TestLockTask(t *testing.T) {
	s := New()
	tk, _ := seed(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, r workflow.Repos) error {
		got, err := r.Tasks.LockTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, tk.ID, got.ID)

		_, err = r.Tasks.LockTask(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestSubtasksByDepartment(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	tk, member := seed(t, s)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		err := s.InTx(ctx, func(ctx context.Context, r workflow.Repos) error {
			st, err := r.Tasks.CreateSubtask(ctx, &task.Subtask{
				Name: name, ParentTaskID: tk.ID, AssigneeID: member.ID, DepartmentID: "d1", DueDate: now,
			})
			if err != nil {
				return err
			}
			ids = append(ids, st.ID)
			return nil
		})
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}

	got, err := s.Reads().Tasks.ByDepartment(ctx, "d1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)

	got, err = s.Reads().Tasks.ByDepartment(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.Reads().Tasks.ByDepartment(ctx, "d2", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
