package workflow_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

// testDatabaseEnv names a PostgreSQL URL to run the store tests against.
// Each test works in a schema of its own that is dropped afterwards.
const testDatabaseEnv = "APPRAISAL_TEST_DATABASE_URL"

type pgFixture struct {
	svc   *workflow.Service
	store *workflow.PgStore
	pool  *pgxpool.Pool
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}
	ctx := context.Background()
	schema := fmt.Sprintf("appraisal_test_%d", time.Now().UnixNano())

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := workflow.NewPgStore(pool, logger)
	require.NoError(t, store.EnsureSchema(ctx))
	return &pgFixture{svc: workflow.New(store, workflow.WithLogger(logger)), store: store, pool: pool}
}

func (f *pgFixture) newTask(t *testing.T, dept string) *task.Task {
	t.Helper()
	tk, err := f.svc.CreateTask(context.Background(), workflow.CreateTaskInput{
		Name: "Audit", Description: "Quarterly audit", DueDate: taskDue, DepartmentID: dept, CreatedBy: "hod-1",
	})
	require.NoError(t, err)
	return tk
}

func (f *pgFixture) member(t *testing.T, email string) *staff.Staff {
	t.Helper()
	m, err := f.svc.RegisterStaff(context.Background(), workflow.RegisterStaffInput{
		Name: "Ada", Email: email, DepartmentID: "finance", Workload: 3,
	})
	require.NoError(t, err)
	return m
}

// inReview creates a subtask on tk for m and walks it to review.
func (f *pgFixture) inReview(t *testing.T, tk *task.Task, m *staff.Staff) *task.Subtask {
	t.Helper()
	ctx := context.Background()
	st, err := f.svc.CreateSubtask(ctx, workflow.CreateSubtaskInput{
		ParentTaskID: tk.ID, Name: "Reconcile", Description: "d", Priority: "high",
		AssigneeID: m.ID, DueDate: "2026-06-20", CreatedBy: "hod-1",
	})
	require.NoError(t, err)
	_, err = f.svc.StartSubtask(ctx, st.ID, m.ID)
	require.NoError(t, err)
	st, err = f.svc.SubmitForReview(ctx, st.ID, m.ID)
	require.NoError(t, err)
	return st
}

func (f *pgFixture) inTx(fn func(ctx context.Context, r workflow.Repos) error) error {
	return f.store.InTx(context.Background(), fn)
}

func TestPgLedgerGuards(t *testing.T) {
	f := newPgFixture(t)
	tk := f.newTask(t, "finance")
	m := f.member(t, "ada@example.com")

	err := f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Ledger.IncrementTaskPendingCount(ctx, tk.ID, 1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation, "pending may not exceed subtask_count")

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Ledger.IncrementTaskSubtaskCount(ctx, tk.ID, -1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Ledger.IncrementStaffPendingCount(ctx, m.ID, -1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Ledger.IncrementTaskPendingCount(ctx, "missing", 1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Ledger.IncrementStaffCompletedCount(ctx, "missing", 1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		return r.Ledger.SetStaffOverallEfficiency(ctx, "missing", 50)
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		n, err := r.Ledger.IncrementTaskSubtaskCount(ctx, tk.ID, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		n, err = r.Ledger.IncrementTaskPendingCount(ctx, tk.ID, 1)
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)

	got, err := f.svc.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SubtaskCount)
	assert.Equal(t, 1, got.PendingSubtasksCount)
}

func TestPgEfficiencyWrittenOnce(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	tk := f.newTask(t, "finance")
	m := f.member(t, "ada@example.com")
	st := f.inReview(t, tk, m)

	res, err := f.svc.SetSubtaskStatus(ctx, workflow.SetStatusInput{
		SubtaskID: st.ID, Status: "completed", QualityOfWork: "good", Actor: "hod-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Efficiency)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		locked, err := r.Tasks.LockSubtask(ctx, st.ID)
		if err != nil {
			return err
		}
		other, quality := *res.Efficiency+1, "poor"
		locked.Efficiency = &other
		locked.QualityOfWork = &quality
		return r.Tasks.SaveProgress(ctx, locked)
	})
	require.NoError(t, err)

	got, err := f.svc.GetSubtask(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, *res.Efficiency, *got.Efficiency)
	assert.Equal(t, "good", *got.QualityOfWork)

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		return r.Tasks.SaveProgress(ctx, &task.Subtask{ID: "missing", Status: task.StatusReview})
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPgConcurrentCompletions(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	tk := f.newTask(t, "finance")
	members := []*staff.Staff{f.member(t, "ada@example.com"), f.member(t, "grace@example.com")}
	subs := []*task.Subtask{f.inReview(t, tk, members[0]), f.inReview(t, tk, members[1])}

	var wg sync.WaitGroup
	errs := make([]error, len(subs))
	for i, st := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.SetSubtaskStatus(ctx, workflow.SetStatusInput{
				SubtaskID: st.ID, Status: "completed", QualityOfWork: "excellent", Actor: "hod-1",
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PendingSubtasksCount)
	assert.Equal(t, task.TaskCompleted, got.Status)
	for _, m := range members {
		s, err := f.svc.GetStaff(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, s.PendingCount)
		assert.Equal(t, 1, s.TasksCompletedCount)
	}

	require.NoError(t, f.svc.VerifyAudit(ctx))
	pending, err := audit.NewPgStore(f.pool).Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending, "every committed event is sealed")
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	// task, 2 staff, then per subtask created/started/submitted/completed/efficiency, then task completed
	assert.Equal(t, 14, stats.AuditEvents)
}

func TestPgNewSubtaskRacesCompletion(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	m := f.member(t, "ada@example.com")

	for range 10 {
		tk := f.newTask(t, "finance")
		st := f.inReview(t, tk, m)

		var wg sync.WaitGroup
		var completeErr, createErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = f.svc.SetSubtaskStatus(ctx, workflow.SetStatusInput{
				SubtaskID: st.ID, Status: "completed", QualityOfWork: "good", Actor: "hod-1",
			})
		}()
		go func() {
			defer wg.Done()
			_, createErr = f.svc.CreateSubtask(ctx, workflow.CreateSubtaskInput{
				ParentTaskID: tk.ID, Name: "Follow-up", Description: "d", Priority: "low",
				AssigneeID: m.ID, DueDate: "2026-06-20",
			})
		}()
		wg.Wait()
		require.NoError(t, completeErr)
		require.NoError(t, createErr)

		got, err := f.svc.GetTask(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.SubtaskCount)
		assert.Equal(t, 1, got.PendingSubtasksCount)
		assert.Equal(t, task.TaskPending, got.Status, "a task with outstanding work is never left completed")
	}
	require.NoError(t, f.svc.VerifyAudit(ctx))
}

func TestPgSubtaskListings(t *testing.T) {
	f := newPgFixture(t)
	ctx := context.Background()
	m := f.member(t, "ada@example.com")
	finance := f.inReview(t, f.newTask(t, "finance"), m)
	ops := f.inReview(t, f.newTask(t, "ops"), m)

	subs, err := f.svc.DepartmentSubtasks(ctx, "finance", 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, finance.ID, subs[0].ID)

	subs, err = f.svc.DepartmentSubtasks(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, ops.ID, subs[0].ID, "newest first")

	err = f.inTx(func(ctx context.Context, r workflow.Repos) error {
		_, err := r.Tasks.LockTask(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
