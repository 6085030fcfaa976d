package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisPublisherPublishesToStaffChannel(t *testing.T) {
	_, client := setupMiniRedis(t)
	ctx := context.Background()
	p := NewRedisPublisher(client, "test", BreakerConfig{}, RetryConfig{}, quietLogger())

	sub := client.Subscribe(ctx, p.Channel("s1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := Notification{ID: "n1", StaffID: "s1", Type: SubtaskAssigned, Message: "new subtask"}
	require.NoError(t, p.Send(ctx, n))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "test:staff:s1", msg.Channel)
		var got Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, n.Type, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisherBreakerOpens(t *testing.T) {
	mr, client := setupMiniRedis(t)
	p := NewRedisPublisher(client, "test",
		BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute},
		RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		quietLogger())
	mr.Close()

	ctx := context.Background()
	n := Notification{StaffID: "s1", Type: SubtaskRework}
	assert.Error(t, p.Send(ctx, n))
	assert.Error(t, p.Send(ctx, n))
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.Send(ctx, n)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
