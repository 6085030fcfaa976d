package workflow

import (
	"context"
	"fmt"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/efficiency"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/task"
)

// Result reports the outcome of a reviewer's status change. The scores are
// set only when the subtask was completed.
type Result struct {
	Subtask           *task.Subtask `json:"subtask"`
	Efficiency        *int          `json:"efficiency,omitempty"`
	OverallEfficiency *int          `json:"overall_efficiency,omitempty"`
}

// StartSubtask moves a subtask into in_progress.
func (s *Service) StartSubtask(ctx context.Context, id, actor string) (*task.Subtask, error) {
	return s.assigneeMove(ctx, "start subtask", id, actor, audit.SubtaskStarted, (*task.Subtask).Start)
}

// SubmitForReview hands a subtask to its reviewer.
func (s *Service) SubmitForReview(ctx context.Context, id, actor string) (*task.Subtask, error) {
	return s.assigneeMove(ctx, "submit subtask", id, actor, audit.SubtaskSubmitted, (*task.Subtask).Submit)
}

func (s *Service) assigneeMove(ctx context.Context, op, id, actor, eventType string, move func(*task.Subtask, time.Time) error) (*task.Subtask, error) {
	var st *task.Subtask
	err := s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		st, err = r.Tasks.LockSubtask(ctx, id)
		if err != nil {
			return err
		}
		from := st.Status
		if err := move(st, s.clock()); err != nil {
			return err
		}
		if err := authorize(st, from, st.Status, actor); err != nil {
			return err
		}
		if err := r.Tasks.SaveProgress(ctx, st); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, eventType, st.ID, actor, map[string]any{
			"from": string(from),
			"to":   string(st.Status),
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}
	return st, nil
}

// authorize checks that actor may move st from -> to. An anonymous actor is
// held to the lifecycle table only.
func authorize(st *task.Subtask, from, to task.Status, actor string) error {
	if actor == "" {
		return task.CheckTransition(from, to)
	}
	return task.Authorize(from, to, st.RoleOf(actor))
}

// SetStatusInput is a reviewer's decision on a subtask in review.
type SetStatusInput struct {
	SubtaskID     string `json:"subtask_id"`
	Status        string `json:"status"`
	QualityOfWork string `json:"quality_of_work"`
	Actor         string `json:"actor"`
}

// SetSubtaskStatus sends a reviewed subtask back for rework or completes it.
// Input is validated before any record is read.
func (s *Service) SetSubtaskStatus(ctx context.Context, in SetStatusInput) (*Result, error) {
	const op = "set subtask status"
	if in.SubtaskID == "" {
		return nil, apperr.InvalidInput(op, "subtask_id is required")
	}
	status, err := task.ParseReviewStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if status == task.StatusRework {
		return s.sendBack(ctx, in)
	}
	if in.QualityOfWork == "" {
		return nil, apperr.InvalidInput(op, "quality_of_work is required to complete a subtask")
	}
	q, err := efficiency.ParseQuality(in.QualityOfWork)
	if err != nil {
		return nil, apperr.InvalidInput(op, "%v", err)
	}
	return s.complete(ctx, in, q)
}

func (s *Service) sendBack(ctx context.Context, in SetStatusInput) (*Result, error) {
	const op = "send subtask back"
	var st *task.Subtask
	err := s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		st, err = r.Tasks.LockSubtask(ctx, in.SubtaskID)
		if err != nil {
			return err
		}
		from := st.Status
		if err := st.SendBack(s.clock()); err != nil {
			return err
		}
		if err := authorize(st, from, st.Status, in.Actor); err != nil {
			return err
		}
		if err := r.Tasks.SaveProgress(ctx, st); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, audit.SubtaskRework, st.ID, in.Actor, map[string]any{
			"rework_count": st.ReworkCount,
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Info("subtask sent back for rework", "subtask_id", st.ID, "rework_count", st.ReworkCount)
	s.notify(notify.Notification{
		StaffID:   st.AssigneeID,
		SubtaskID: st.ID,
		Type:      notify.SubtaskRework,
		Message:   fmt.Sprintf("Subtask %s needs rework", st.Name),
	})
	return &Result{Subtask: st}, nil
}

// complete scores the subtask and folds the score into its assignee's
// running efficiency. Rows are locked subtask, then task, then staff.
func (s *Service) complete(ctx context.Context, in SetStatusInput, q efficiency.Quality) (*Result, error) {
	const op = "complete subtask"
	var (
		st      *task.Subtask
		score   int
		overall int
	)
	err := s.store.InTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		st, err = r.Tasks.LockSubtask(ctx, in.SubtaskID)
		if err != nil {
			return err
		}
		if err := authorize(st, st.Status, task.StatusCompleted, in.Actor); err != nil {
			return err
		}

		taskPending, err := r.Ledger.IncrementTaskPendingCount(ctx, st.ParentTaskID, -1)
		if err != nil {
			return err
		}
		member, err := r.Staff.Lock(ctx, st.AssigneeID)
		if err != nil {
			return err
		}

		now := s.clock()
		score, err = efficiency.SubtaskEfficiency(efficiency.Input{
			Quality:             q,
			CreatedAt:           st.CreatedAt,
			Now:                 now,
			Workload:            member.Workload,
			PendingCount:        member.PendingCount,
			ReworkCount:         st.ReworkCount,
			TasksCompletedCount: member.TasksCompletedCount,
		})
		if err != nil {
			return err
		}
		completed := member.TasksCompletedCount + 1
		overall, err = efficiency.OverallEfficiency(score, completed, member.OverallEfficiency)
		if err != nil {
			return err
		}

		if err := st.Complete(q, score, now); err != nil {
			return err
		}
		if err := r.Tasks.SaveProgress(ctx, st); err != nil {
			return err
		}

		if _, err := r.Ledger.IncrementStaffPendingCount(ctx, member.ID, -1); err != nil {
			return err
		}
		if _, err := r.Ledger.IncrementStaffCompletedCount(ctx, member.ID, 1); err != nil {
			return err
		}
		if err := r.Ledger.SetStaffOverallEfficiency(ctx, member.ID, overall); err != nil {
			return err
		}

		if taskPending == 0 {
			if err := r.Tasks.SetTaskStatus(ctx, st.ParentTaskID, task.TaskCompleted); err != nil {
				return err
			}
			if _, err := r.Audit.Append(ctx, audit.TaskCompleted, st.ParentTaskID, in.Actor, nil); err != nil {
				return err
			}
		}
		if _, err := r.Audit.Append(ctx, audit.SubtaskCompleted, st.ID, in.Actor, map[string]any{
			"quality_of_work": q.String(),
			"efficiency":      score,
		}); err != nil {
			return err
		}
		_, err = r.Audit.Append(ctx, audit.EfficiencyUpdated, member.ID, in.Actor, map[string]any{
			"subtask_id":            st.ID,
			"previous":              member.OverallEfficiency,
			"overall_efficiency":    overall,
			"tasks_completed_count": completed,
		})
		return err
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Info("subtask completed", "subtask_id", st.ID, "assignee_id", st.AssigneeID,
		"efficiency", score, "overall_efficiency", overall)
	s.notify(notify.Notification{
		StaffID:   st.AssigneeID,
		SubtaskID: st.ID,
		Type:      notify.SubtaskCompleted,
		Message:   fmt.Sprintf("Subtask %s was completed with quality %s (efficiency %d%%)", st.Name, q, score),
	})
	return &Result{Subtask: st, Efficiency: &score, OverallEfficiency: &overall}, nil
}

// GetSubtask returns a subtask by ID.
func (s *Service) GetSubtask(ctx context.Context, id string) (*task.Subtask, error) {
	return s.store.Reads().Tasks.GetSubtask(ctx, id)
}

// PendingReviews returns subtasks waiting on a reviewer.
func (s *Service) PendingReviews(ctx context.Context, departmentID string, limit int) ([]task.Subtask, error) {
	return s.store.Reads().Tasks.ByStatus(ctx, departmentID, task.StatusReview, normalizeLimit(limit))
}

// DepartmentSubtasks lists a department's subtasks in every status, newest
// first. An empty department lists all.
func (s *Service) DepartmentSubtasks(ctx context.Context, departmentID string, limit int) ([]task.Subtask, error) {
	return s.store.Reads().Tasks.ByDepartment(ctx, departmentID, normalizeLimit(limit))
}

// AssignedSubtasks returns every subtask assigned to a staff member.
func (s *Service) AssignedSubtasks(ctx context.Context, staffID string) ([]task.Subtask, error) {
	r := s.store.Reads()
	if _, err := r.Staff.Get(ctx, staffID); err != nil {
		return nil, err
	}
	return r.Tasks.ByAssignee(ctx, staffID)
}

// SubtaskHistory returns the audit events recorded for a subtask.
func (s *Service) SubtaskHistory(ctx context.Context, id string) ([]audit.Event, error) {
	r := s.store.Reads()
	if _, err := r.Tasks.GetSubtask(ctx, id); err != nil {
		return nil, err
	}
	return r.Audit.BySubject(ctx, id, 500)
}
