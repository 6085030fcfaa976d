package main

import (
	"context"
	"errors"

	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

// snapshot is everything the dashboard renders from one refresh.
type snapshot struct {
	stats    workflow.Stats
	tasks    []task.Task
	reviews  []task.Subtask
	rankings []workflow.Ranking
	events   []audit.Event
}

// loadSnapshot fetches every view. A failed view is left empty and its error
// joined into the result.
func loadSnapshot(ctx context.Context, c *client) (snapshot, error) {
	var (
		s    snapshot
		errs []error
		err  error
	)
	if s.stats, err = c.stats(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.tasks, err = c.tasks(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.reviews, err = c.reviews(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.rankings, err = c.rankings(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.events, err = c.events(ctx); err != nil {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}

func (s snapshot) inReview(subtaskID string) bool {
	for _, st := range s.reviews {
		if st.ID == subtaskID {
			return true
		}
	}
	return false
}
