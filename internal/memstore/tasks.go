package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/task"
)

type taskRepo struct {
	at  accessor
	now func() time.Time
}

func (r *taskRepo) EnsureTable(context.Context) error { return nil }

func (r *taskRepo) CreateTask(_ context.Context, t *task.Task) (*task.Task, error) {
	now := r.now()
	t.ID = uuid.Must(uuid.NewV7()).String()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Status = task.TaskPending
	t.SubtaskCount = 0
	t.PendingSubtasksCount = 0
	err := r.at(func(st *state) error {
		st.tasks[t.ID] = *t
		return nil
	})
	return t, err
}

func (r *taskRepo) GetTask(_ context.Context, id string) (*task.Task, error) {
	var out task.Task
	err := r.at(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return apperr.NotFound("get task", "task", id)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockTask is GetTask: units of work already run one at a time.
func (r *taskRepo) LockTask(ctx context.Context, id string) (*task.Task, error) {
	return r.GetTask(ctx, id)
}

func (r *taskRepo) ListTasks(_ context.Context, departmentID string, limit int) ([]task.Task, error) {
	var out []task.Task
	err := r.at(func(st *state) error {
		for _, t := range st.tasks {
			if departmentID == "" || t.DepartmentID == departmentID {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b task.Task) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), cmp.Compare(a.ID, b.ID))
	})
	return truncate(out, limit), err
}

func (r *taskRepo) SetTaskStatus(_ context.Context, id string, status task.TaskStatus) error {
	return r.at(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return apperr.NotFound("set task status", "task", id)
		}
		t.Status = status
		t.UpdatedAt = r.now()
		st.tasks[id] = t
		return nil
	})
}

func (r *taskRepo) CreateSubtask(_ context.Context, s *task.Subtask) (*task.Subtask, error) {
	now := r.now()
	s.ID = uuid.Must(uuid.NewV7()).String()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.Status = task.StatusPending
	s.ReworkCount = 0
	s.Efficiency = nil
	s.QualityOfWork = nil
	err := r.at(func(st *state) error {
		if _, ok := st.tasks[s.ParentTaskID]; !ok {
			return apperr.NotFound("create subtask", "task", s.ParentTaskID)
		}
		st.subtasks[s.ID] = *s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *taskRepo) GetSubtask(_ context.Context, id string) (*task.Subtask, error) {
	var out task.Subtask
	err := r.at(func(st *state) error {
		s, ok := st.subtasks[id]
		if !ok {
			return apperr.NotFound("get subtask", "subtask", id)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockSubtask is GetSubtask: units of work already run one at a time.
func (r *taskRepo) LockSubtask(ctx context.Context, id string) (*task.Subtask, error) {
	return r.GetSubtask(ctx, id)
}

func (r *taskRepo) SaveProgress(_ context.Context, s *task.Subtask) error {
	return r.at(func(st *state) error {
		cur, ok := st.subtasks[s.ID]
		if !ok || cur.ReworkCount > s.ReworkCount {
			return apperr.NotFound("save subtask", "subtask", s.ID)
		}
		cur.Status = s.Status
		cur.ReworkCount = s.ReworkCount
		if cur.Efficiency == nil {
			cur.Efficiency = s.Efficiency
		}
		if cur.QualityOfWork == nil {
			cur.QualityOfWork = s.QualityOfWork
		}
		cur.CompletedAt = s.CompletedAt
		cur.UpdatedAt = s.UpdatedAt
		st.subtasks[s.ID] = cur
		return nil
	})
}

func (r *taskRepo) ByParent(_ context.Context, parentID string) ([]task.Subtask, error) {
	out, err := r.filter(func(s task.Subtask) bool { return s.ParentTaskID == parentID })
	slices.SortFunc(out, byCreated)
	return out, err
}

func (r *taskRepo) ByAssignee(_ context.Context, staffID string) ([]task.Subtask, error) {
	out, err := r.filter(func(s task.Subtask) bool { return s.AssigneeID == staffID })
	slices.SortFunc(out, func(a, b task.Subtask) int { return byCreated(b, a) })
	return out, err
}

func (r *taskRepo) ByStatus(_ context.Context, departmentID string, status task.Status, limit int) ([]task.Subtask, error) {
	out, err := r.filter(func(s task.Subtask) bool {
		return s.Status == status && (departmentID == "" || s.DepartmentID == departmentID)
	})
	slices.SortFunc(out, func(a, b task.Subtask) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), cmp.Compare(a.ID, b.ID))
	})
	return truncate(out, limit), err
}

func (r *taskRepo) ByDepartment(_ context.Context, departmentID string, limit int) ([]task.Subtask, error) {
	out, err := r.filter(func(s task.Subtask) bool { return departmentID == "" || s.DepartmentID == departmentID })
	slices.SortFunc(out, func(a, b task.Subtask) int { return byCreated(b, a) })
	return truncate(out, limit), err
}

func (r *taskRepo) Count(context.Context) (int, error) {
	var n int
	err := r.at(func(st *state) error {
		n = len(st.tasks)
		return nil
	})
	return n, err
}

func (r *taskRepo) PendingCount(context.Context) (int, error) {
	out, err := r.filter(func(s task.Subtask) bool { return s.Status.Outstanding() })
	return len(out), err
}

func (r *taskRepo) filter(keep func(task.Subtask) bool) ([]task.Subtask, error) {
	var out []task.Subtask
	err := r.at(func(st *state) error {
		for _, s := range st.subtasks {
			if keep(s) {
				out = append(out, s)
			}
		}
		return nil
	})
	return out, err
}

func byCreated(a, b task.Subtask) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
