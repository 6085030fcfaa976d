package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig sizes the delivery queue.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher delivers notifications on background workers. Dispatch never
// blocks: when the queue is full the notification is dropped and logged.
type Dispatcher struct {
	senders []Sender
	queue   chan Notification
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Call Start before Dispatch.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, senders ...Sender) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		senders: senders,
		queue:   make(chan Notification, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.SendTimeout,
		logger:  logger,
	}
}

// Start launches the workers. They exit when Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

// Dispatch queues n for delivery and reports whether it was accepted.
func (d *Dispatcher) Dispatch(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped: dispatcher closed", "staff_id", n.StaffID, "type", n.Type)
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("notification dropped: queue full", "staff_id", n.StaffID, "type", n.Type)
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, s := range d.senders {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		err := s.Send(sendCtx, n)
		cancel()
		if err != nil {
			d.logger.Warn("notification delivery failed", "staff_id", n.StaffID, "type", n.Type, "error", err)
		}
	}
}
