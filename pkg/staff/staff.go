package staff

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role of a staff record.
type Role string

const (
	RoleStaff Role = "staff"
	RoleHOD   Role = "hod"
	RoleAdmin Role = "admin"
)

// ParseRole accepts staff, hod or admin; empty means staff.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleStaff, nil
	case RoleStaff, RoleHOD, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q: must be one of staff, hod, admin", s)
}

// Metrics is the scoring subset of a staff record. Only the ledger writes
// the counters and the overall efficiency.
type Metrics struct {
	Workload            int `json:"workload"`
	PendingCount        int `json:"pending_count"`
	TasksCompletedCount int `json:"tasks_completed_count"`
	OverallEfficiency   int `json:"overall_efficiency"`
}

// Staff is a member of a department who can be assigned subtasks.
type Staff struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
	Metrics
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for staff persistence.
type Store interface {
	// Register creates a staff record with zeroed metrics. Email is unique.
	Register(ctx context.Context, s *Staff) (*Staff, error)

	// Get returns a staff record by ID.
	Get(ctx context.Context, id string) (*Staff, error)

	// Lock reads a staff record and holds it until the surrounding
	// transaction ends.
	Lock(ctx context.Context, id string) (*Staff, error)

	// ByEmail returns a staff record by email.
	ByEmail(ctx context.Context, email string) (*Staff, error)

	// List returns staff in a department; empty lists everyone.
	List(ctx context.Context, departmentID string) ([]Staff, error)

	// Rankings returns staff with the role staff ordered by overall
	// efficiency, then completed count.
	Rankings(ctx context.Context, departmentID string, limit int) ([]Staff, error)

	// EnsureTable creates the staff table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
