package task

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is informational: a task is completed once every subtask under it is.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task is a top-level unit of work created by a department head.
type Task struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	DueDate              time.Time  `json:"due_date"`
	DepartmentID         string     `json:"department_id"`
	CreatedBy            string     `json:"created_by"`
	Status               TaskStatus `json:"status"`
	SubtaskCount         int        `json:"subtask_count"`          // every subtask ever created under it
	PendingSubtasksCount int        `json:"pending_subtasks_count"` // subtasks not yet completed
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Priority of a subtask.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts low, medium or high in any case.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q: must be one of low, medium, high", s)
}

// Subtask is a unit of work assigned to exactly one staff member.
type Subtask struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Priority      Priority   `json:"priority"`
	ParentTaskID  string     `json:"parent_task_id"`
	AssigneeID    string     `json:"assignee_id"`
	DueDate       time.Time  `json:"due_date"`
	MaxDueDate    time.Time  `json:"max_due_date"` // parent's due date when the subtask was created
	DepartmentID  string     `json:"department_id"`
	Status        Status     `json:"status"`
	ReworkCount   int        `json:"rework_count"`
	Efficiency    *int       `json:"efficiency"`
	QualityOfWork *string    `json:"quality_of_work"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Store is the contract for task and subtask persistence. Counter columns are
// never written here; the ledger owns them.
type Store interface {
	CreateTask(ctx context.Context, t *Task) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	// LockTask reads a task and holds it against concurrent writers until the
	// surrounding transaction ends.
	LockTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, departmentID string, limit int) ([]Task, error)
	SetTaskStatus(ctx context.Context, id string, status TaskStatus) error

	CreateSubtask(ctx context.Context, s *Subtask) (*Subtask, error)
	GetSubtask(ctx context.Context, id string) (*Subtask, error)
	// LockSubtask reads a subtask and holds it against concurrent writers
	// until the surrounding transaction ends.
	LockSubtask(ctx context.Context, id string) (*Subtask, error)
	// SaveProgress persists the lifecycle fields of s: status, rework count,
	// efficiency, quality and timestamps.
	SaveProgress(ctx context.Context, s *Subtask) error
	ByParent(ctx context.Context, parentID string) ([]Subtask, error)
	ByAssignee(ctx context.Context, staffID string) ([]Subtask, error)
	ByStatus(ctx context.Context, departmentID string, status Status, limit int) ([]Subtask, error)
	ByDepartment(ctx context.Context, departmentID string, limit int) ([]Subtask, error)

	Count(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
