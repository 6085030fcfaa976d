package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"staff-appraisal/internal/db"
	"staff-appraisal/pkg/apperr"
)

const (
	taskColumns    = `id, name, description, due_date, department_id, created_by, status, subtask_count, pending_subtasks_count, created_at, updated_at`
	subtaskColumns = `id, name, description, priority, parent_task_id, assignee_id, due_date, max_due_date, department_id, status, rework_count, efficiency, quality_of_work, created_at, updated_at, completed_at`
)

// PgStore is a PostgreSQL-backed task store. It runs against a pool or a
// transaction.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// EnsureTable creates the tasks and subtasks tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			description            TEXT NOT NULL DEFAULT '',
			due_date               TIMESTAMPTZ NOT NULL,
			department_id          TEXT NOT NULL,
			created_by             TEXT NOT NULL DEFAULT '',
			status                 TEXT NOT NULL DEFAULT 'pending',
			subtask_count          INTEGER NOT NULL DEFAULT 0 CHECK (subtask_count >= 0),
			pending_subtasks_count INTEGER NOT NULL DEFAULT 0 CHECK (pending_subtasks_count >= 0),
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (pending_subtasks_count <= subtask_count)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_department ON tasks(department_id, due_date)`,
		`CREATE TABLE IF NOT EXISTS subtasks (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			priority        TEXT NOT NULL,
			parent_task_id  TEXT NOT NULL REFERENCES tasks(id),
			assignee_id     TEXT NOT NULL,
			due_date        TIMESTAMPTZ NOT NULL,
			max_due_date    TIMESTAMPTZ NOT NULL,
			department_id   TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			rework_count    INTEGER NOT NULL DEFAULT 0 CHECK (rework_count >= 0),
			efficiency      INTEGER CHECK (efficiency BETWEEN 0 AND 100),
			quality_of_work TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at    TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subtasks_parent ON subtasks(parent_task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_subtasks_assignee ON subtasks(assignee_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_subtasks_department_status ON subtasks(department_id, status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

// CreateTask inserts a new task with zeroed counters.
func (s *PgStore) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Status = TaskPending
	t.SubtaskCount = 0
	t.PendingSubtasksCount = 0

	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, name, description, due_date, department_id, created_by, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Description, t.DueDate, t.DepartmentID, t.CreatedBy, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a single task by ID.
func (s *PgStore) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.oneTask(ctx, "get task", `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
}

// LockTask reads a task with FOR UPDATE. Only meaningful inside a transaction.
func (s *PgStore) LockTask(ctx context.Context, id string) (*Task, error) {
	return s.oneTask(ctx, "lock task", `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id)
}

func (s *PgStore) oneTask(ctx context.Context, op, query, id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(op, "task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return t, nil
}

// ListTasks returns tasks ordered by due date. An empty department lists all.
func (s *PgStore) ListTasks(ctx context.Context, departmentID string, limit int) ([]Task, error) {
	var rows pgx.Rows
	var err error
	if departmentID != "" {
		rows, err = s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE department_id = $1 ORDER BY due_date ASC, id ASC LIMIT $2`, departmentID, limit)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY due_date ASC, id ASC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// SetTaskStatus updates the informational status of a task.
func (s *PgStore) SetTaskStatus(ctx context.Context, id string, status TaskStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().Truncate(time.Microsecond), id)
	if err != nil {
		return fmt.Errorf("set task status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("set task status", "task", id)
	}
	return nil
}

// CreateSubtask inserts a new subtask in the pending state.
func (s *PgStore) CreateSubtask(ctx context.Context, st *Subtask) (*Subtask, error) {
	st.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	st.CreatedAt = now
	st.UpdatedAt = now
	st.Status = StatusPending
	st.ReworkCount = 0
	st.Efficiency = nil
	st.QualityOfWork = nil

	_, err := s.db.Exec(ctx, `
		INSERT INTO subtasks (id, name, description, priority, parent_task_id, assignee_id, due_date, max_due_date, department_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		st.ID, st.Name, st.Description, string(st.Priority), st.ParentTaskID, st.AssigneeID,
		st.DueDate, st.MaxDueDate, st.DepartmentID, string(st.Status), st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	return st, nil
}

// GetSubtask retrieves a single subtask by ID.
func (s *PgStore) GetSubtask(ctx context.Context, id string) (*Subtask, error) {
	return s.oneSubtask(ctx, "get subtask", `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1`, id)
}

// LockSubtask reads a subtask with FOR UPDATE. Only meaningful inside a transaction.
func (s *PgStore) LockSubtask(ctx context.Context, id string) (*Subtask, error) {
	return s.oneSubtask(ctx, "lock subtask", `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1 FOR UPDATE`, id)
}

// SaveProgress writes the lifecycle fields of a subtask. The efficiency column
// is only ever written while it is still NULL.
func (s *PgStore) SaveProgress(ctx context.Context, st *Subtask) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subtasks
		SET status = $1, rework_count = $2, efficiency = COALESCE(efficiency, $3),
		    quality_of_work = COALESCE(quality_of_work, $4), completed_at = $5, updated_at = $6
		WHERE id = $7 AND rework_count <= $2`,
		string(st.Status), st.ReworkCount, st.Efficiency, st.QualityOfWork, st.CompletedAt, st.UpdatedAt, st.ID)
	if err != nil {
		return fmt.Errorf("save subtask %s: %w", st.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("save subtask", "subtask", st.ID)
	}
	return nil
}

// ByParent returns all subtasks of a task, oldest first.
func (s *PgStore) ByParent(ctx context.Context, parentID string) ([]Subtask, error) {
	return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE parent_task_id = $1 ORDER BY created_at ASC, id ASC`, parentID)
}

// ByAssignee returns every subtask assigned to a staff member, newest first.
func (s *PgStore) ByAssignee(ctx context.Context, staffID string) ([]Subtask, error) {
	return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE assignee_id = $1 ORDER BY created_at DESC, id DESC`, staffID)
}

// ByStatus returns subtasks in a status, oldest update first. An empty
// department matches all.
func (s *PgStore) ByStatus(ctx context.Context, departmentID string, status Status, limit int) ([]Subtask, error) {
	if departmentID == "" {
		return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE status = $1 ORDER BY updated_at ASC, id ASC LIMIT $2`, string(status), limit)
	}
	return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE department_id = $1 AND status = $2 ORDER BY updated_at ASC, id ASC LIMIT $3`, departmentID, string(status), limit)
}

// ByDepartment returns a department's subtasks, newest first. An empty
// department matches all.
func (s *PgStore) ByDepartment(ctx context.Context, departmentID string, limit int) ([]Subtask, error) {
	if departmentID == "" {
		return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	}
	return s.manySubtasks(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE department_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, departmentID, limit)
}

// Count returns the total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// PendingCount returns the number of subtasks still outstanding.
func (s *PgStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM subtasks WHERE status NOT IN ('completed', 'rejected')`).Scan(&n)
	return n, err
}

func (s *PgStore) oneSubtask(ctx context.Context, op, query string, id string) (*Subtask, error) {
	st, err := scanSubtask(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(op, "subtask", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return st, nil
}

func (s *PgStore) manySubtasks(ctx context.Context, query string, args ...any) ([]Subtask, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []Subtask
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		subtasks = append(subtasks, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return subtasks, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.DueDate, &t.DepartmentID, &t.CreatedBy, &t.Status,
		&t.SubtaskCount, &t.PendingSubtasksCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanSubtask(row pgx.Row) (*Subtask, error) {
	var st Subtask
	err := row.Scan(&st.ID, &st.Name, &st.Description, &st.Priority, &st.ParentTaskID, &st.AssigneeID,
		&st.DueDate, &st.MaxDueDate, &st.DepartmentID, &st.Status, &st.ReworkCount, &st.Efficiency,
		&st.QualityOfWork, &st.CreatedAt, &st.UpdatedAt, &st.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
