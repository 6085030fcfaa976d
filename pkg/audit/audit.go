// Package audit records every workflow transition in an append-only,
// hash-chained log. Each event carries the hash of its predecessor, so any
// edited or removed row breaks verification from that point on.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the workflow.
const (
	TaskCreated       = "task.created"
	TaskCompleted     = "task.completed"
	SubtaskCreated    = "subtask.created"
	SubtaskStarted    = "subtask.started"
	SubtaskSubmitted  = "subtask.submitted"
	SubtaskRework     = "subtask.rework"
	SubtaskCompleted  = "subtask.completed"
	StaffRegistered   = "staff.registered"
	EfficiencyUpdated = "staff.efficiency_updated"
)

// Event is a single entry in the audit chain.
type Event struct {
	ID        string         `json:"id"` // UUID v7
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"` // task, subtask or staff the event is about
	Actor     string         `json:"actor"`
	Content   map[string]any `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Hash      string         `json:"hash"`
	PrevHash  string         `json:"prev_hash"`
}

// Log is the contract for audit persistence.
type Log interface {
	Append(ctx context.Context, eventType, subjectID, actor string, content map[string]any) (*Event, error)
	BySubject(ctx context.Context, subjectID string, limit int) ([]Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	// Since returns events after afterID in chain order, for polling.
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// Seal links e to prevHash and computes its hash.
func Seal(e *Event, prevHash string) error {
	if e.Content == nil {
		e.Content = map[string]any{}
	}
	contentJSON, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	e.PrevHash = prevHash
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.SubjectID, e.Actor, e.Timestamp, contentJSON)
	return nil
}

// Verifier checks events one at a time in chain order.
type Verifier struct {
	prevHash string
	n        int
}

// Next checks that e follows the previous event and that its hash matches
// its contents.
func (v *Verifier) Next(e Event) error {
	if e.PrevHash != v.prevHash {
		return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", v.n, e.ID, e.PrevHash, v.prevHash)
	}
	contentJSON, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("event %d (%s): marshal content: %w", v.n, e.ID, err)
	}
	want := computeHash(v.prevHash, e.ID, e.Type, e.SubjectID, e.Actor, e.Timestamp, contentJSON)
	if e.Hash != want {
		return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", v.n, e.ID, e.Hash, want)
	}
	v.prevHash = e.Hash
	v.n++
	return nil
}

// Verify checks a whole chain held in memory.
func Verify(events []Event) error {
	var v Verifier
	for _, e := range events {
		if err := v.Next(e); err != nil {
			return err
		}
	}
	return nil
}

func computeHash(prevHash, id, eventType, subjectID, actor string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s", prevHash, id, eventType, subjectID, actor, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
