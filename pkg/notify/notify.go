// Package notify delivers in-app notifications about subtask assignments and
// reviews. Delivery is fire-and-forget: the workflow hands a notification to a
// Dispatcher after its transaction commits, and failures are only logged.
package notify

import (
	"context"
	"time"
)

// Type of a notification.
type Type string

const (
	SubtaskAssigned  Type = "subtask.assigned"
	SubtaskRework    Type = "subtask.rework"
	SubtaskCompleted Type = "subtask.completed"
)

// Notification is a message for one staff member.
type Notification struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	SubtaskID string    `json:"subtask_id,omitempty"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the contract for in-app notification persistence.
type Store interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	// ForStaff returns a staff member's notifications, newest first.
	ForStaff(ctx context.Context, staffID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	EnsureTable(ctx context.Context) error
}

// Sender delivers a notification over one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// StoreSender persists notifications so staff see them in the app.
type StoreSender struct {
	Store Store
}

func (s StoreSender) Send(ctx context.Context, n Notification) error {
	_, err := s.Store.Create(ctx, &n)
	return err
}
