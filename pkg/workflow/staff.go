package workflow

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
)

// RegisterStaffInput is the request to add a staff member.
type RegisterStaffInput struct {
	Name         string `json:"name" validate:"required,nonempty"`
	Email        string `json:"email" validate:"required,email"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id" validate:"required,nonempty"`
	Workload     int    `json:"workload" validate:"min=0"`
	Actor        string `json:"actor"`
}

// RegisterStaff creates a staff record with zeroed metrics.
func (s *Service) RegisterStaff(ctx context.Context, in RegisterStaffInput) (*staff.Staff, error) {
	const op = "register staff"
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	role, err := staff.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.InvalidInput(op, "%v", err)
	}

	var member *staff.Staff
	err = s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		if _, err := r.Staff.ByEmail(ctx, in.Email); err == nil {
			return apperr.InvalidInput(op, "email %s already exists", in.Email)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		member, err = r.Staff.Register(ctx, &staff.Staff{
			Name:         strings.TrimSpace(in.Name),
			Email:        strings.TrimSpace(in.Email),
			Role:         role,
			DepartmentID: in.DepartmentID,
			Metrics:      staff.Metrics{Workload: in.Workload},
		})
		if err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, audit.StaffRegistered, member.ID, in.Actor, map[string]any{
			"role":          string(member.Role),
			"department_id": member.DepartmentID,
			"workload":      member.Workload,
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	s.logger.Info("staff registered", "staff_id", member.ID, "role", member.Role)
	return member, nil
}

// GetStaff returns a staff record by ID.
func (s *Service) GetStaff(ctx context.Context, id string) (*staff.Staff, error) {
	return s.store.Reads().Staff.Get(ctx, id)
}

// ListStaff returns the staff in a department.
func (s *Service) ListStaff(ctx context.Context, departmentID string) ([]staff.Staff, error) {
	return s.store.Reads().Staff.List(ctx, departmentID)
}

// Ranking is one row of the efficiency leaderboard.
type Ranking struct {
	Rank int `json:"rank"`
	staff.Staff
}

// StaffRankings orders staff by overall efficiency.
func (s *Service) StaffRankings(ctx context.Context, departmentID string, limit int) ([]Ranking, error) {
	members, err := s.store.Reads().Staff.Rankings(ctx, departmentID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Ranking, len(members))
	for i, m := range members {
		out[i] = Ranking{Rank: i + 1, Staff: m}
	}
	return out, nil
}

// StaffReport aggregates a staff member's record and subtask history.
type StaffReport struct {
	Staff       StaffDetails       `json:"staff_details"`
	Performance PerformanceMetrics `json:"performance_metrics"`
	History     []HistoryEntry     `json:"task_history"`
}

// StaffDetails is the identity part of a report.
type StaffDetails struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              staff.Role `json:"role"`
	DepartmentID      string     `json:"department_id"`
	Workload          int        `json:"workload"`
	OverallEfficiency int        `json:"overall_efficiency"`
}

// PerformanceMetrics summarizes a staff member's subtasks.
type PerformanceMetrics struct {
	TotalSubtasks       int     `json:"total_subtasks"`
	CompletedSubtasks   int     `json:"completed_subtasks"`
	PendingSubtasks     int     `json:"pending_subtasks"`
	TasksCompletedCount int     `json:"tasks_completed_count"`
	CompletionRate      float64 `json:"completion_rate"`    // percent, two decimals
	AverageEfficiency   float64 `json:"average_efficiency"` // over completed subtasks, two decimals
}

// HistoryEntry is one subtask in a report.
type HistoryEntry struct {
	SubtaskID     string        `json:"subtask_id"`
	SubtaskName   string        `json:"subtask_name"`
	TaskID        string        `json:"task_id"`
	TaskName      string        `json:"task_name"`
	Priority      task.Priority `json:"priority"`
	Status        task.Status   `json:"status"`
	ReworkCount   int           `json:"rework_count"`
	Efficiency    *int          `json:"efficiency"`
	QualityOfWork *string       `json:"quality_of_work"`
	DueDate       time.Time     `json:"due_date"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// GetStaffReport composes a staff member's stored metrics with their
// subtask history.
func (s *Service) GetStaffReport(ctx context.Context, staffID string) (*StaffReport, error) {
	r := s.store.Reads()
	member, err := r.Staff.Get(ctx, staffID)
	if err != nil {
		return nil, err
	}
	subtasks, err := r.Tasks.ByAssignee(ctx, staffID)
	if err != nil {
		return nil, err
	}

	report := &StaffReport{
		Staff: StaffDetails{
			ID:                member.ID,
			Name:              member.Name,
			Email:             member.Email,
			Role:              member.Role,
			DepartmentID:      member.DepartmentID,
			Workload:          member.Workload,
			OverallEfficiency: member.OverallEfficiency,
		},
		History: make([]HistoryEntry, 0, len(subtasks)),
	}

	taskNames := map[string]string{}
	var scored, sum int
	for _, st := range subtasks {
		name, ok := taskNames[st.ParentTaskID]
		if !ok {
			parent, err := r.Tasks.GetTask(ctx, st.ParentTaskID)
			if err != nil {
				return nil, err
			}
			name = parent.Name
			taskNames[st.ParentTaskID] = name
		}
		report.History = append(report.History, HistoryEntry{
			SubtaskID:     st.ID,
			SubtaskName:   st.Name,
			TaskID:        st.ParentTaskID,
			TaskName:      name,
			Priority:      st.Priority,
			Status:        st.Status,
			ReworkCount:   st.ReworkCount,
			Efficiency:    st.Efficiency,
			QualityOfWork: st.QualityOfWork,
			DueDate:       st.DueDate,
			CompletedAt:   st.CompletedAt,
		})
		if st.Status == task.StatusCompleted {
			report.Performance.CompletedSubtasks++
		}
		if st.Status.Outstanding() {
			report.Performance.PendingSubtasks++
		}
		if st.Efficiency != nil {
			scored++
			sum += *st.Efficiency
		}
	}

	report.Performance.TotalSubtasks = len(subtasks)
	report.Performance.TasksCompletedCount = member.TasksCompletedCount
	if n := report.Performance.TotalSubtasks; n > 0 {
		report.Performance.CompletionRate = round2(100 * float64(report.Performance.CompletedSubtasks) / float64(n))
	}
	if scored > 0 {
		report.Performance.AverageEfficiency = round2(float64(sum) / float64(scored))
	}
	return report, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Notifications returns a staff member's in-app notifications.
func (s *Service) Notifications(ctx context.Context, staffID string, unreadOnly bool, limit int) ([]notify.Notification, error) {
	if _, err := s.store.Reads().Staff.Get(ctx, staffID); err != nil {
		return nil, err
	}
	if s.notes == nil {
		return []notify.Notification{}, nil
	}
	return s.notes.ForStaff(ctx, staffID, unreadOnly, normalizeLimit(limit))
}

// MarkNotificationRead flags a notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	if s.notes == nil {
		return apperr.NotFound("mark notification read", "notification", id)
	}
	return s.notes.MarkRead(ctx, id)
}

// Stats are the headline counts shown on status pages.
type Stats struct {
	Tasks           int `json:"tasks"`
	PendingSubtasks int `json:"pending_subtasks"`
	AuditEvents     int `json:"audit_events"`
}

// Stats returns record counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	r := s.store.Reads()
	var st Stats
	var err error
	if st.Tasks, err = r.Tasks.Count(ctx); err != nil {
		return st, err
	}
	if st.PendingSubtasks, err = r.Tasks.PendingCount(ctx); err != nil {
		return st, err
	}
	if st.AuditEvents, err = r.Audit.Count(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// AuditSince returns audit events appended after afterID.
func (s *Service) AuditSince(ctx context.Context, afterID string, limit int) ([]audit.Event, error) {
	return s.store.Reads().Audit.Since(ctx, afterID, normalizeLimit(limit))
}

// RecentAudit returns the newest audit events first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.store.Reads().Audit.Recent(ctx, normalizeLimit(limit))
}

// VerifyAudit checks the integrity of the whole audit chain.
func (s *Service) VerifyAudit(ctx context.Context) error {
	return s.store.Reads().Audit.VerifyChain(ctx)
}
