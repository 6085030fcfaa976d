package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"staff-appraisal/pkg/audit"
)

type auditRepo struct {
	at  accessor
	now func() time.Time
}

func (r *auditRepo) EnsureTable(context.Context) error { return nil }

func (r *auditRepo) Append(_ context.Context, eventType, subjectID, actor string, content map[string]any) (*audit.Event, error) {
	e := &audit.Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Content:   content,
		Timestamp: r.now(),
	}
	err := r.at(func(st *state) error {
		prev := ""
		if n := len(st.events); n > 0 {
			prev = st.events[n-1].Hash
		}
		if err := audit.Seal(e, prev); err != nil {
			return err
		}
		st.events = append(st.events, *e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *auditRepo) BySubject(_ context.Context, subjectID string, limit int) ([]audit.Event, error) {
	var out []audit.Event
	err := r.at(func(st *state) error {
		for _, e := range st.events {
			if e.SubjectID == subjectID {
				out = append(out, e)
			}
		}
		return nil
	})
	return truncate(out, limit), err
}

func (r *auditRepo) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	var out []audit.Event
	err := r.at(func(st *state) error {
		out = slices.Clone(st.events)
		return nil
	})
	slices.Reverse(out)
	return truncate(out, limit), err
}

func (r *auditRepo) Since(_ context.Context, afterID string, limit int) ([]audit.Event, error) {
	var out []audit.Event
	err := r.at(func(st *state) error {
		start := 0
		if afterID != "" {
			start = len(st.events)
			for i, e := range st.events {
				if e.ID == afterID {
					start = i + 1
					break
				}
			}
		}
		out = slices.Clone(st.events[start:])
		return nil
	})
	return truncate(out, limit), err
}

func (r *auditRepo) Count(context.Context) (int, error) {
	var n int
	err := r.at(func(st *state) error {
		n = len(st.events)
		return nil
	})
	return n, err
}

func (r *auditRepo) VerifyChain(context.Context) error {
	return r.at(func(st *state) error {
		return audit.Verify(st.events)
	})
}
