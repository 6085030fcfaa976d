package workflow

import (
	"context"
	"fmt"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/task"
)

// CreateTaskInput is the request to create a task.
type CreateTaskInput struct {
	Name         string `json:"name" validate:"required,nonempty"`
	Description  string `json:"description" validate:"required,nonempty"`
	DueDate      string `json:"due_date" validate:"required,nonempty"`
	DepartmentID string `json:"department_id" validate:"required,nonempty"`
	CreatedBy    string `json:"created_by"`
}

// CreateTask persists a new task with zeroed counters.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*task.Task, error) {
	const op = "create task"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	due, err := ParseDate(in.DueDate)
	if err != nil {
		return nil, apperr.InvalidInput(op, "%v", err)
	}

	t := &task.Task{
		Name:         in.Name,
		Description:  in.Description,
		DueDate:      due,
		DepartmentID: in.DepartmentID,
		CreatedBy:    in.CreatedBy,
		Status:       task.TaskPending,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		created, err := r.Tasks.CreateTask(ctx, t)
		if err != nil {
			return err
		}
		t = created
		_, err = r.Audit.Append(ctx, audit.TaskCreated, t.ID, in.CreatedBy, map[string]any{
			"name":          t.Name,
			"department_id": t.DepartmentID,
			"due_date":      t.DueDate.Format(time.RFC3339),
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.logger.Info("task created", "task_id", t.ID, "department_id", t.DepartmentID)
	return t, nil
}

// CreateSubtaskInput is the request to create a subtask under a task.
type CreateSubtaskInput struct {
	ParentTaskID string `json:"parent_task_id" validate:"required,nonempty"`
	Name         string `json:"name" validate:"required,nonempty"`
	Description  string `json:"description" validate:"required,nonempty"`
	Priority     string `json:"priority" validate:"required,priority"`
	AssigneeID   string `json:"assignee_id" validate:"required,nonempty"`
	DueDate      string `json:"due_date" validate:"required,nonempty"`
	CreatedBy    string `json:"created_by"`
}

// CreateSubtask assigns a new subtask to a staff member. Its due date may
// not fall after the parent task's.
func (s *Service) CreateSubtask(ctx context.Context, in CreateSubtaskInput) (*task.Subtask, error) {
	const op = "create subtask"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	priority, err := task.ParsePriority(in.Priority)
	if err != nil {
		return nil, apperr.InvalidInput(op, "%v", err)
	}
	due, err := ParseDate(in.DueDate)
	if err != nil {
		return nil, apperr.InvalidInput(op, "%v", err)
	}

	var st *task.Subtask
	err = s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		// Locked so a concurrent completion cannot close the task between
		// this read and the reopen below.
		parent, err := r.Tasks.LockTask(ctx, in.ParentTaskID)
		if err != nil {
			return err
		}
		if _, err := r.Staff.Get(ctx, in.AssigneeID); err != nil {
			return err
		}
		if due.After(parent.DueDate) {
			return apperr.InvalidInput(op, "due date %s is after the task's due date %s",
				due.Format("2006-01-02 15:04:05"), parent.DueDate.Format("2006-01-02 15:04:05"))
		}

		st, err = r.Tasks.CreateSubtask(ctx, &task.Subtask{
			Name:         in.Name,
			Description:  in.Description,
			Priority:     priority,
			ParentTaskID: parent.ID,
			AssigneeID:   in.AssigneeID,
			DueDate:      due,
			MaxDueDate:   parent.DueDate,
			DepartmentID: parent.DepartmentID,
			Status:       task.StatusPending,
		})
		if err != nil {
			return err
		}

		if _, err := r.Ledger.IncrementTaskSubtaskCount(ctx, parent.ID, 1); err != nil {
			return err
		}
		if _, err := r.Ledger.IncrementTaskPendingCount(ctx, parent.ID, 1); err != nil {
			return err
		}
		if _, err := r.Ledger.IncrementStaffPendingCount(ctx, in.AssigneeID, 1); err != nil {
			return err
		}
		if parent.Status == task.TaskCompleted {
			if err := r.Tasks.SetTaskStatus(ctx, parent.ID, task.TaskPending); err != nil {
				return err
			}
		}

		_, err = r.Audit.Append(ctx, audit.SubtaskCreated, st.ID, in.CreatedBy, map[string]any{
			"parent_task_id": parent.ID,
			"assignee_id":    st.AssigneeID,
			"priority":       string(st.Priority),
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Info("subtask created", "subtask_id", st.ID, "task_id", st.ParentTaskID, "assignee_id", st.AssigneeID)
	s.notify(notify.Notification{
		StaffID:   st.AssigneeID,
		SubtaskID: st.ID,
		Type:      notify.SubtaskAssigned,
		Message:   fmt.Sprintf("You have been assigned a new subtask: %s", st.Name),
	})
	return st, nil
}

// GetTask returns a task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return s.store.Reads().Tasks.GetTask(ctx, id)
}

// ListTasks returns tasks, optionally limited to one department.
func (s *Service) ListTasks(ctx context.Context, departmentID string, limit int) ([]task.Task, error) {
	return s.store.Reads().Tasks.ListTasks(ctx, departmentID, normalizeLimit(limit))
}

// ListSubtasks returns the subtasks under a task.
func (s *Service) ListSubtasks(ctx context.Context, taskID string) ([]task.Subtask, error) {
	r := s.store.Reads()
	if _, err := r.Tasks.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return r.Tasks.ByParent(ctx, taskID)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
