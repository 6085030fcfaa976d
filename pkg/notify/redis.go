package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around Redis publishes.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// RetryConfig bounds retries of a single publish.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RedisPublisher fans notifications out on Redis pub/sub, one channel per
// staff member. Publishes retry with exponential backoff; repeated failures
// open the breaker and later publishes fail fast until it half-opens.
type RedisPublisher struct {
	client  *redis.Client
	prefix  string
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewRedisPublisher creates a RedisPublisher over client.
func NewRedisPublisher(client *redis.Client, prefix string, bc BreakerConfig, rc RetryConfig, logger *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "appraisal"
	}
	if bc.ConsecutiveFailures == 0 {
		bc.ConsecutiveFailures = 5
	}
	if bc.Timeout == 0 {
		bc.Timeout = 30 * time.Second
	}
	if rc.MaxRetries <= 0 {
		rc.MaxRetries = 2
	}
	if rc.InitialInterval == 0 {
		rc.InitialInterval = 50 * time.Millisecond
	}
	if rc.MaxInterval == 0 {
		rc.MaxInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := bc.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        "redis-notify",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &RedisPublisher{
		client:  client,
		prefix:  prefix,
		breaker: gobreaker.NewCircuitBreaker(settings),
		retry:   rc,
	}
}

// Channel returns the pub/sub channel for a staff member.
func (p *RedisPublisher) Channel(staffID string) string {
	return p.prefix + ":staff:" + staffID
}

// State reports the breaker state.
func (p *RedisPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Send publishes n as JSON on the staff member's channel.
func (p *RedisPublisher) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	channel := p.Channel(n.StaffID)

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publish(ctx, channel, payload)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, payload []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retry.InitialInterval
	b.MaxInterval = p.retry.MaxInterval

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.retry.MaxRetries)), ctx)
	return backoff.Retry(func() error {
		return p.client.Publish(ctx, channel, payload).Err()
	}, policy)
}
