package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/staff"
)

type staffRepo struct {
	at  accessor
	now func() time.Time
}

func (r *staffRepo) EnsureTable(context.Context) error { return nil }

func (r *staffRepo) Register(_ context.Context, s *staff.Staff) (*staff.Staff, error) {
	s.ID = uuid.Must(uuid.NewV7()).String()
	s.CreatedAt = r.now()
	s.Email = strings.TrimSpace(s.Email)
	s.PendingCount = 0
	s.TasksCompletedCount = 0
	s.OverallEfficiency = 0
	err := r.at(func(st *state) error {
		for _, m := range st.staff {
			if strings.EqualFold(m.Email, s.Email) {
				return apperr.InvalidInput("register staff", "email %s already exists", s.Email)
			}
		}
		st.staff[s.ID] = *s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *staffRepo) Get(_ context.Context, id string) (*staff.Staff, error) {
	return r.find("get staff", id, func(s staff.Staff) bool { return s.ID == id })
}

func (r *staffRepo) Lock(ctx context.Context, id string) (*staff.Staff, error) {
	return r.Get(ctx, id)
}

func (r *staffRepo) ByEmail(_ context.Context, email string) (*staff.Staff, error) {
	email = strings.TrimSpace(email)
	return r.find("staff by email", email, func(s staff.Staff) bool { return strings.EqualFold(s.Email, email) })
}

func (r *staffRepo) List(_ context.Context, departmentID string) ([]staff.Staff, error) {
	out, err := r.filter(func(s staff.Staff) bool { return departmentID == "" || s.DepartmentID == departmentID })
	slices.SortFunc(out, func(a, b staff.Staff) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, err
}

func (r *staffRepo) Rankings(_ context.Context, departmentID string, limit int) ([]staff.Staff, error) {
	out, err := r.filter(func(s staff.Staff) bool {
		return s.Role == staff.RoleStaff && (departmentID == "" || s.DepartmentID == departmentID)
	})
	slices.SortFunc(out, func(a, b staff.Staff) int {
		return cmp.Or(
			cmp.Compare(b.OverallEfficiency, a.OverallEfficiency),
			cmp.Compare(b.TasksCompletedCount, a.TasksCompletedCount),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return truncate(out, limit), err
}

func (r *staffRepo) find(op, key string, match func(staff.Staff) bool) (*staff.Staff, error) {
	var out *staff.Staff
	err := r.at(func(st *state) error {
		for _, s := range st.staff {
			if match(s) {
				out = &s
				return nil
			}
		}
		return apperr.NotFound(op, "staff", key)
	})
	return out, err
}

func (r *staffRepo) filter(keep func(staff.Staff) bool) ([]staff.Staff, error) {
	var out []staff.Staff
	err := r.at(func(st *state) error {
		for _, s := range st.staff {
			if keep(s) {
				out = append(out, s)
			}
		}
		return nil
	})
	return out, err
}
