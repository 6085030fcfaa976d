package api

import (
	"net/http"

	"staff-appraisal/pkg/workflow"
)

func (s *Server) handleStaffRegister(w http.ResponseWriter, r *http.Request) {
	var in workflow.RegisterStaffInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.Actor == "" {
		in.Actor = actor(r)
	}
	member, err := s.svc.RegisterStaff(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 201, member)
}

func (s *Server) handleStaffList(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListStaff(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(members))
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	dept := r.URL.Query().Get("department")
	ranks, err := s.svc.StaffRankings(r.Context(), dept, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(ranks))
}

func (s *Server) handleStaffReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.GetStaffReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, report)
}

func (s *Server) handleStaffSubtasks(w http.ResponseWriter, r *http.Request) {
	subtasks, err := s.svc.AssignedSubtasks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(subtasks))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	items, err := s.svc.Notifications(r.Context(), r.PathValue("id"), unread, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(items))
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.MarkNotificationRead(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, map[string]bool{"read": true})
}
