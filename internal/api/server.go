package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/workflow"
)

// ActorHeader carries the caller's staff ID. Authentication happens upstream.
const ActorHeader = "X-Staff-ID"

// Server is the HTTP API server.
type Server struct {
	svc          *workflow.Service
	logger       *slog.Logger
	mux          *http.ServeMux
	pollInterval time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPollInterval sets how often the event stream checks for new events.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) { s.pollInterval = d }
}

// New creates a new Server.
func New(svc *workflow.Service, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		logger:       slog.Default(),
		mux:          http.NewServeMux(),
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("POST /api/tasks/{id}/subtasks", s.handleSubtaskCreate)

	// Subtasks
	s.mux.HandleFunc("GET /api/subtasks", s.handleDepartmentSubtasks)
	s.mux.HandleFunc("GET /api/subtasks/{id}", s.handleSubtaskGet)
	s.mux.HandleFunc("GET /api/subtasks/{id}/history", s.handleSubtaskHistory)
	s.mux.HandleFunc("POST /api/subtasks/{id}/start", s.handleSubtaskStart)
	s.mux.HandleFunc("POST /api/subtasks/{id}/submit", s.handleSubtaskSubmit)
	s.mux.HandleFunc("PUT /api/subtasks/{id}/status", s.handleSubtaskStatus)
	s.mux.HandleFunc("GET /api/reviews", s.handleReviews)

	// Staff
	s.mux.HandleFunc("POST /api/staff", s.handleStaffRegister)
	s.mux.HandleFunc("GET /api/staff", s.handleStaffList)
	s.mux.HandleFunc("GET /api/staff/rankings", s.handleRankings)
	s.mux.HandleFunc("GET /api/staff/{id}/report", s.handleStaffReport)
	s.mux.HandleFunc("GET /api/staff/{id}/subtasks", s.handleStaffSubtasks)
	s.mux.HandleFunc("GET /api/staff/{id}/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /api/notifications/{id}/read", s.handleNotificationRead)

	// Audit
	s.mux.HandleFunc("GET /api/events", s.handleEventList)
	s.mux.HandleFunc("GET /api/events/stream", s.handleEventStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write json", "error", err)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

// DecodeError turns a failed response into an error. A body that is not an
// ErrorResponse, such as a proxy's HTML page, yields the status line instead.
func DecodeError(resp *http.Response) error {
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		return errors.New(resp.Status)
	}
	return errors.New(e.Error)
}

// fail maps a workflow error onto a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidStateTransition:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidInput("decode request", "invalid JSON: %v", err)
	}
	return nil
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}
