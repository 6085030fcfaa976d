package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recorder) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversToEverySender(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	d := NewDispatcher(DispatcherConfig{QueueSize: 8, Workers: 2}, quietLogger(), a, b)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		assert.True(t, d.Dispatch(Notification{StaffID: "s1", Type: SubtaskAssigned}))
	}
	d.Close()

	assert.Equal(t, 5, a.count())
	assert.Equal(t, 5, b.count())
}

func TestDispatcherFailingSenderDoesNotStopOthers(t *testing.T) {
	failing := SenderFunc(func(context.Context, Notification) error {
		return errors.New("smtp down")
	})
	rec := &recorder{}
	d := NewDispatcher(DispatcherConfig{QueueSize: 4, Workers: 1}, quietLogger(), failing, rec)
	d.Start(context.Background())

	d.Dispatch(Notification{StaffID: "s1", Type: SubtaskRework})
	d.Close()

	assert.Equal(t, 1, rec.count())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := SenderFunc(func(context.Context, Notification) error {
		<-release
		return nil
	})
	d := NewDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1, SendTimeout: time.Second}, quietLogger(), blocking)
	d.Start(context.Background())

	// The first is picked up by the worker and blocks there; the second fills the queue.
	require.True(t, d.Dispatch(Notification{StaffID: "s1"}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Dispatch(Notification{StaffID: "s1"}))

	assert.False(t, d.Dispatch(Notification{StaffID: "s1"}), "third notification should be dropped")

	close(release)
	d.Close()
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, quietLogger())
	d.Start(context.Background())
	d.Close()
	d.Close()

	assert.False(t, d.Dispatch(Notification{StaffID: "s1"}))
}

type memNotifications struct {
	recorder
}

func (m *memNotifications) Create(ctx context.Context, n *Notification) (*Notification, error) {
	_ = m.Send(ctx, *n)
	return n, nil
}

func (m *memNotifications) ForStaff(context.Context, string, bool, int) ([]Notification, error) {
	return nil, nil
}

func (m *memNotifications) MarkRead(context.Context, string) error { return nil }

func (m *memNotifications) EnsureTable(context.Context) error { return nil }

func TestStoreSenderPersists(t *testing.T) {
	store := &memNotifications{}
	s := StoreSender{Store: store}

	require.NoError(t, s.Send(context.Background(), Notification{StaffID: "s1", Message: "hi"}))
	assert.Equal(t, 1, store.count())
}
