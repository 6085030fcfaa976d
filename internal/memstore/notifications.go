package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"staff-appraisal/pkg/apperr"
	"staff-appraisal/pkg/notify"
)

// Notifications is an in-memory notify.Store.
type Notifications struct {
	mu    sync.Mutex
	items map[string]notify.Notification
}

var _ notify.Store = (*Notifications)(nil)

// NewNotifications creates an empty notification store.
func NewNotifications() *Notifications {
	return &Notifications{items: map[string]notify.Notification{}}
}

func (n *Notifications) EnsureTable(context.Context) error { return nil }

func (n *Notifications) Create(_ context.Context, item *notify.Notification) (*notify.Notification, error) {
	if item.ID == "" {
		item.ID = uuid.Must(uuid.NewV7()).String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items[item.ID] = *item
	return item, nil
}

func (n *Notifications) ForStaff(_ context.Context, staffID string, unreadOnly bool, limit int) ([]notify.Notification, error) {
	n.mu.Lock()
	var out []notify.Notification
	for _, item := range n.items {
		if item.StaffID == staffID && (!unreadOnly || !item.Read) {
			out = append(out, item)
		}
	}
	n.mu.Unlock()

	slices.SortFunc(out, func(a, b notify.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return truncate(out, limit), nil
}

func (n *Notifications) MarkRead(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	item, ok := n.items[id]
	if !ok {
		return apperr.NotFound("mark notification read", "notification", id)
	}
	item.Read = true
	n.items[id] = item
	return nil
}
