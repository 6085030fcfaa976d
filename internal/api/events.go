package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"staff-appraisal/pkg/audit"
)

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)

	var (
		events []audit.Event
		err    error
	)
	if after := r.URL.Query().Get("after"); after != "" {
		events, err = s.svc.AuditSince(ctx, after, limit)
	} else {
		events, err = s.svc.RecentAudit(ctx, limit)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, nonNil(events))
}

// handleEventStream sends audit events as server-sent events. Without an
// after parameter the stream starts at the newest event.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, 500, "streaming not supported")
		return
	}

	ctx := r.Context()
	lastID := r.URL.Query().Get("after")
	if lastID == "" {
		latest, err := s.svc.RecentAudit(ctx, 1)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if len(latest) > 0 {
			lastID = latest[0].ID
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := s.svc.AuditSince(ctx, lastID, 50)
			if err != nil {
				s.logger.Warn("sse poll", "error", err)
				continue
			}
			for _, e := range events {
				data, err := json.Marshal(e)
				if err != nil {
					s.logger.Warn("sse encode", "event_id", e.ID, "error", err)
					continue
				}
				fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
				lastID = e.ID
			}
			if len(events) > 0 {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, 200, stats)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
