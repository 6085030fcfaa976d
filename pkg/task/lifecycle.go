package task

import (
	"strings"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/efficiency"
)

// Status is a subtask's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusRework     Status = "rework"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Outstanding reports whether a subtask in s still counts toward pending totals.
func (s Status) Outstanding() bool {
	return !s.Terminal()
}

// Role is who may trigger a transition.
type Role string

const (
	RoleAssignee Role = "assignee"
	RoleReviewer Role = "reviewer"
)

// transitions maps from -> to -> the role allowed to make the move.
// rework's exits mirror in_progress's.
var transitions = map[Status]map[Status]Role{
	StatusPending: {
		StatusInProgress: RoleAssignee,
		StatusReview:     RoleAssignee,
	},
	StatusInProgress: {
		StatusReview: RoleAssignee,
	},
	StatusRework: {
		StatusInProgress: RoleAssignee,
		StatusReview:     RoleAssignee,
	},
	StatusReview: {
		StatusRework:    RoleReviewer,
		StatusCompleted: RoleReviewer,
	},
}

// TriggeredBy returns the role that may move a subtask from one status to
// another, and false when the move is not allowed at all.
func TriggeredBy(from, to Status) (Role, bool) {
	role, ok := transitions[from][to]
	return role, ok
}

// CheckTransition fails with an InvalidStateTransition error unless from -> to
// is in the table.
func CheckTransition(from, to Status) error {
	if _, ok := TriggeredBy(from, to); !ok {
		return apperr.InvalidTransition("subtask lifecycle", string(from), string(to))
	}
	return nil
}

// Authorize fails unless role may move a subtask from -> to. An illegal move
// is reported as such whatever the role.
func Authorize(from, to Status, role Role) error {
	want, ok := TriggeredBy(from, to)
	if !ok {
		return apperr.InvalidTransition("subtask lifecycle", string(from), string(to))
	}
	if want != role {
		return apperr.Forbidden("subtask lifecycle", "moving from %s to %s is done by the %s", from, to, want)
	}
	return nil
}

// RoleOf is the role actor plays on s: its assignee, or a reviewer.
func (s *Subtask) RoleOf(actor string) Role {
	if actor == s.AssigneeID {
		return RoleAssignee
	}
	return RoleReviewer
}

// ParseReviewStatus accepts the statuses a reviewer may request: rework and completed.
func ParseReviewStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusRework, StatusCompleted:
		return st, nil
	}
	return "", apperr.InvalidInput("set subtask status", "invalid status %q: only rework or completed are supported", s)
}

// Start moves an assigned subtask into in_progress.
func (s *Subtask) Start(now time.Time) error {
	return s.moveTo(StatusInProgress, now)
}

// Submit hands the subtask to its reviewer.
func (s *Subtask) Submit(now time.Time) error {
	return s.moveTo(StatusReview, now)
}

// SendBack returns a reviewed subtask to its assignee and counts the rework.
func (s *Subtask) SendBack(now time.Time) error {
	if err := s.moveTo(StatusRework, now); err != nil {
		return err
	}
	s.ReworkCount++
	return nil
}

// Complete records the reviewer's rating and the subtask's efficiency score.
// The score is written once and never recomputed.
func (s *Subtask) Complete(q efficiency.Quality, score int, now time.Time) error {
	if err := CheckTransition(s.Status, StatusCompleted); err != nil {
		return err
	}
	if s.Efficiency != nil {
		return apperr.InvariantViolation("complete subtask", "subtask %s already has an efficiency score", s.ID)
	}
	if score < 0 || score > 100 {
		return apperr.InvariantViolation("complete subtask", "efficiency %d outside [0,100]", score)
	}
	label := q.String()
	s.Status = StatusCompleted
	s.Efficiency = &score
	s.QualityOfWork = &label
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

func (s *Subtask) moveTo(to Status, now time.Time) error {
	if err := CheckTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}
