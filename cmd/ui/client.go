package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"staff-appraisal/internal/api"
	"staff-appraisal/pkg/audit"
	"staff-appraisal/pkg/task"
	"staff-appraisal/pkg/workflow"
)

// client talks to the appraisal HTTP API on behalf of one reviewer.
type client struct {
	base  string
	actor string
	http  *http.Client
}

func newClient(base, actor string) *client {
	return &client{
		base:  strings.TrimSuffix(base, "/"),
		actor: actor,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor != "" {
		req.Header.Set("X-Staff-ID", c.actor)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, api.DecodeError(resp))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) stats(ctx context.Context) (workflow.Stats, error) {
	var s workflow.Stats
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &s)
	return s, err
}

func (c *client) tasks(ctx context.Context) ([]task.Task, error) {
	var ts []task.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks?limit=100", nil, &ts)
	return ts, err
}

func (c *client) reviews(ctx context.Context) ([]task.Subtask, error) {
	var subs []task.Subtask
	err := c.do(ctx, http.MethodGet, "/api/reviews?limit=100", nil, &subs)
	return subs, err
}

func (c *client) rankings(ctx context.Context) ([]workflow.Ranking, error) {
	var rs []workflow.Ranking
	err := c.do(ctx, http.MethodGet, "/api/staff/rankings?limit=100", nil, &rs)
	return rs, err
}

func (c *client) events(ctx context.Context) ([]audit.Event, error) {
	var es []audit.Event
	err := c.do(ctx, http.MethodGet, "/api/events?limit=100", nil, &es)
	return es, err
}

// review records a reviewer decision. quality is ignored for rework.
func (c *client) review(ctx context.Context, subtaskID string, status task.Status, quality string) (*workflow.Result, error) {
	in := workflow.SetStatusInput{Status: string(status), Actor: c.actor}
	if status == task.StatusCompleted {
		in.QualityOfWork = quality
	}
	var res workflow.Result
	if err := c.do(ctx, http.MethodPut, "/api/subtasks/"+subtaskID+"/status", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
