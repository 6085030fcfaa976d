package api

import (
	"net/http"

	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	dept := r.URL.Query().Get("department")
	tasks, err := s.svc.ListTasks(r.Context(), dept, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(tasks))
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateTaskInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = actor(r)
	}
	t, err := s.svc.CreateTask(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 201, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	t, err := s.svc.GetTask(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	subtasks, err := s.svc.ListSubtasks(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, struct {
		*task.Task
		Subtasks []task.Subtask `json:"subtasks"`
	}{t, nonNil(subtasks)})
}

func (s *Server) handleSubtaskCreate(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateSubtaskInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	in.ParentTaskID = r.PathValue("id")
	if in.CreatedBy == "" {
		in.CreatedBy = actor(r)
	}
	st, err := s.svc.CreateSubtask(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 201, st)
}

func (s *Server) handleSubtaskGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetSubtask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, st)
}

func (s *Server) handleSubtaskHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.SubtaskHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(events))
}

func (s *Server) handleSubtaskStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.StartSubtask(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, st)
}

func (s *Server) handleSubtaskSubmit(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.SubmitForReview(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, st)
}

func (s *Server) handleSubtaskStatus(w http.ResponseWriter, r *http.Request) {
	var in workflow.SetStatusInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	in.SubtaskID = r.PathValue("id")
	if in.Actor == "" {
		in.Actor = actor(r)
	}
	res, err := s.svc.SetSubtaskStatus(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, res)
}

func (s *Server) handleDepartmentSubtasks(w http.ResponseWriter, r *http.Request) {
	dept := r.URL.Query().Get("department")
	subtasks, err := s.svc.DepartmentSubtasks(r.Context(), dept, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(subtasks))
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	dept := r.URL.Query().Get("department")
	subtasks, err := s.svc.PendingReviews(r.Context(), dept, queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(subtasks))
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
