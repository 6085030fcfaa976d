package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-appraisal/internal/memstore"
	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/staff"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := workflow.New(memstore.New(),
		workflow.WithNotifications(memstore.NewNotifications()),
		workflow.WithLogger(logger))
	srv := httptest.NewServer(New(svc, WithLogger(logger), WithPollInterval(10*time.Millisecond)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	return doAs(t, srv, "hod-1", method, path, body, out)
}

func doAs(t *testing.T, srv *httptest.Server, actorID, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set(ActorHeader, actorID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seed(t *testing.T, srv *httptest.Server) (task.Task, staff.Staff, task.Subtask) {
	t.Helper()
	var member staff.Staff
	require.Equal(t, 201, do(t, srv, "POST", "/api/staff", map[string]any{
		"name": "Ada", "email": "ada@example.com", "department_id": "finance", "workload": 3,
	}, &member))

	var tk task.Task
	require.Equal(t, 201, do(t, srv, "POST", "/api/tasks", map[string]any{
		"name": "Audit", "description": "Quarterly audit", "due_date": "2026-06-30", "department_id": "finance",
	}, &tk))
	assert.Equal(t, "hod-1", tk.CreatedBy)

	var st task.Subtask
	require.Equal(t, 201, do(t, srv, "POST", "/api/tasks/"+tk.ID+"/subtasks", map[string]any{
		"name": "Reconcile", "description": "Reconcile ledgers", "priority": "high",
		"assignee_id": member.ID, "due_date": "2026-06-20",
	}, &st))
	return tk, member, st
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, statusFor(apperr.InvalidInput("op", "bad")))
	assert.Equal(t, 404, statusFor(apperr.NotFound("op", "task", "x")))
	assert.Equal(t, 409, statusFor(apperr.InvalidTransition("op", "completed", "rework")))
	assert.Equal(t, 403, statusFor(apperr.Forbidden("op", "not yours")))
	assert.Equal(t, 500, statusFor(apperr.InvariantViolation("op", "negative")))
	assert.Equal(t, 500, statusFor(apperr.Computation("op", "nan")))
	assert.Equal(t, 500, statusFor(errors.New("db down")))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	assert.Equal(t, 200, do(t, srv, "GET", "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSubtaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	tk, member, st := seed(t, srv)

	var detail struct {
		task.Task
		Subtasks []task.Subtask `json:"subtasks"`
	}
	require.Equal(t, 200, do(t, srv, "GET", "/api/tasks/"+tk.ID, nil, &detail))
	assert.Equal(t, 1, detail.SubtaskCount)
	assert.Equal(t, 1, detail.PendingSubtasksCount)
	require.Len(t, detail.Subtasks, 1)

	var errBody map[string]string
	assert.Equal(t, 409, do(t, srv, "PUT", "/api/subtasks/"+st.ID+"/status",
		map[string]any{"status": "completed", "quality_of_work": "good"}, &errBody))
	assert.Contains(t, errBody["error"], "cannot move")

	assert.Equal(t, 403, do(t, srv, "POST", "/api/subtasks/"+st.ID+"/start", nil, nil))
	assert.Equal(t, 200, doAs(t, srv, member.ID, "POST", "/api/subtasks/"+st.ID+"/start", nil, nil))
	assert.Equal(t, 200, doAs(t, srv, member.ID, "POST", "/api/subtasks/"+st.ID+"/submit", nil, nil))
	assert.Equal(t, 403, doAs(t, srv, member.ID, "PUT", "/api/subtasks/"+st.ID+"/status",
		map[string]any{"status": "completed", "quality_of_work": "good"}, nil))

	var reviews []task.Subtask
	require.Equal(t, 200, do(t, srv, "GET", "/api/reviews?department=finance", nil, &reviews))
	require.Len(t, reviews, 1)

	assert.Equal(t, 400, do(t, srv, "PUT", "/api/subtasks/"+st.ID+"/status",
		map[string]any{"status": "completed", "quality_of_work": "stellar"}, nil))

	var res struct {
		Subtask           task.Subtask `json:"subtask"`
		Efficiency        *int         `json:"efficiency"`
		OverallEfficiency *int         `json:"overall_efficiency"`
	}
	require.Equal(t, 200, do(t, srv, "PUT", "/api/subtasks/"+st.ID+"/status",
		map[string]any{"status": "completed", "quality_of_work": "Good"}, &res))
	require.NotNil(t, res.Efficiency)
	require.NotNil(t, res.OverallEfficiency)
	assert.LessOrEqual(t, *res.OverallEfficiency, 70)
	assert.Equal(t, task.StatusCompleted, res.Subtask.Status)

	var report workflow.StaffReport
	require.Equal(t, 200, do(t, srv, "GET", "/api/staff/"+member.ID+"/report", nil, &report))
	assert.Equal(t, 1, report.Performance.CompletedSubtasks)
	assert.Equal(t, 100.0, report.Performance.CompletionRate)

	var ranks []workflow.Ranking
	require.Equal(t, 200, do(t, srv, "GET", "/api/staff/rankings", nil, &ranks))
	require.Len(t, ranks, 1)
	assert.Equal(t, *res.OverallEfficiency, ranks[0].OverallEfficiency)

	var history []map[string]any
	require.Equal(t, 200, do(t, srv, "GET", "/api/subtasks/"+st.ID+"/history", nil, &history))
	assert.Len(t, history, 4)

	var stats workflow.Stats
	require.Equal(t, 200, do(t, srv, "GET", "/api/status", nil, &stats))
	assert.Equal(t, 1, stats.Tasks)
	assert.Equal(t, 0, stats.PendingSubtasks)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	tk, member, _ := seed(t, srv)

	assert.Equal(t, 404, do(t, srv, "GET", "/api/tasks/missing", nil, nil))
	assert.Equal(t, 404, do(t, srv, "GET", "/api/staff/missing/report", nil, nil))
	assert.Equal(t, 400, do(t, srv, "POST", "/api/tasks", map[string]any{"name": "x"}, nil))
	assert.Equal(t, 400, do(t, srv, "PUT", "/api/subtasks/missing/status", map[string]any{"status": "in_progress"}, nil))
	assert.Equal(t, 404, do(t, srv, "PUT", "/api/subtasks/missing/status", map[string]any{"status": "rework"}, nil))
	assert.Equal(t, 400, do(t, srv, "POST", "/api/tasks/"+tk.ID+"/subtasks", map[string]any{
		"name": "Late", "description": "d", "priority": "low", "assignee_id": member.ID, "due_date": "2026-07-01",
	}, nil))

	req, err := http.NewRequest("POST", srv.URL+"/api/tasks", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestNotificationsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, member, _ := seed(t, srv)

	var items []map[string]any
	require.Equal(t, 200, do(t, srv, "GET", "/api/staff/"+member.ID+"/notifications", nil, &items))
	assert.Empty(t, items, "no dispatcher is configured")

	assert.Equal(t, 404, do(t, srv, "POST", "/api/notifications/missing/read", nil, nil))
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	do(t, srv, "POST", "/api/staff", map[string]any{
		"name": "Ada", "email": "ada@example.com", "department_id": "finance",
	}, nil)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
			assert.Equal(t, "event: staff.registered", line)
			return
		}
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}

func TestDepartmentSubtasksOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, member, st := seed(t, srv)

	var other task.Task
	require.Equal(t, 201, do(t, srv, "POST", "/api/tasks", map[string]any{
		"name": "Rota", "description": "Shift rota", "due_date": "2026-06-30", "department_id": "ops",
	}, &other))
	require.Equal(t, 201, do(t, srv, "POST", "/api/tasks/"+other.ID+"/subtasks", map[string]any{
		"name": "Draft", "description": "Draft rota", "priority": "low",
		"assignee_id": member.ID, "due_date": "2026-06-20",
	}, nil))
	require.Equal(t, 200, doAs(t, srv, member.ID, "POST", "/api/subtasks/"+st.ID+"/start", nil, nil))

	var subs []task.Subtask
	require.Equal(t, 200, do(t, srv, "GET", "/api/subtasks?department=finance", nil, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, st.ID, subs[0].ID)
	assert.Equal(t, task.StatusInProgress, subs[0].Status)

	require.Equal(t, 200, do(t, srv, "GET", "/api/subtasks", nil, &subs))
	assert.Len(t, subs, 2)

	require.Equal(t, 200, do(t, srv, "GET", "/api/subtasks?department=legal", nil, &subs))
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error envelope", 409, `{"error":"cannot move from completed to rework"}`, "cannot move from completed to rework"},
		{"html page", 502, "<html>Bad Gateway</html>", "502 Bad Gateway"},
		{"empty error", 500, `{"error":""}`, "500 Internal Server Error"},
		{"no body", 404, "", "404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(tt.status)
			rec.WriteString(tt.body)
			resp := rec.Result()
			defer resp.Body.Close()

			err := DecodeError(resp)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}
