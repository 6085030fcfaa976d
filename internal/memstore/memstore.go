// Package memstore is an in-memory workflow.Store. Units of work run one at a
// time against a staged copy of the state, which replaces the live state only
// when the unit succeeds.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

type state struct {
	tasks    map[string]task.Task
	subtasks map[string]task.Subtask
	staff    map[string]staff.Staff
	events   []audit.Event
}

func (s *state) clone() *state {
	return &state{
		tasks:    maps.Clone(s.tasks),
		subtasks: maps.Clone(s.subtasks),
		staff:    maps.Clone(s.staff),
		events:   slices.Clone(s.events),
	}
}

// accessor runs fn against the state a repository is bound to.
type accessor func(fn func(st *state) error) error

// Store is an in-memory workflow.Store.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for created and updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		state: &state{
			tasks:    map[string]task.Task{},
			subtasks: map[string]task.Subtask{},
			staff:    map[string]staff.Staff{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ workflow.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r workflow.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	at := func(f func(st *state) error) error { return f(staged) }
	if err := fn(ctx, s.repos(at)); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) Reads() workflow.Repos {
	return s.repos(func(f func(st *state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return f(s.state)
	})
}

func (s *Store) repos(at accessor) workflow.Repos {
	return workflow.Repos{
		Tasks:  &taskRepo{at: at, now: s.clock},
		Staff:  &staffRepo{at: at, now: s.clock},
		Ledger: &ledgerRepo{at: at},
		Audit:  &auditRepo{at: at, now: s.clock},
	}
}

func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
