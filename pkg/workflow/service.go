// Package workflow orchestrates task and subtask operations: it validates
// input, drives the subtask lifecycle, computes efficiency scores and keeps
// the counters on tasks and staff consistent, all inside one unit of work per
// operation. Notifications go out after commit and never fail an operation.
package workflow

import (
	"log/slog"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/notify"
)

// Notifier accepts notifications for asynchronous delivery.
type Notifier interface {
	Dispatch(n notify.Notification) bool
}

// Service is the workflow entry point used by the API, CLI and UI.
type Service struct {
	store    Store
	notes    notify.Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where post-commit notifications are sent.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithNotifications sets the in-app notification store used for reads.
func WithNotifications(ns notify.Store) Option {
	return func(s *Service) { s.notes = ns }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// fail logs defects at error level and passes err through.
func (s *Service) fail(op string, err error) error {
	if apperr.IsDefect(err) {
		s.logger.Error("workflow defect", "op", op, "kind", apperr.KindOf(err).String(), "error", err)
	}
	return err
}

func (s *Service) notify(n notify.Notification) {
	if s.notifier == nil {
		return
	}
	n.CreatedAt = s.clock()
	s.notifier.Dispatch(n)
}
