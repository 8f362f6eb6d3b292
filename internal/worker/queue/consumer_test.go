package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Values["type"].(string))
	return h.err
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "auth:maintenance", "auth-workers", "worker-test", time.Minute, zerolog.Nop(), handler)
	c.block = 50 * time.Millisecond
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c, client
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), "auth:maintenance", "auth-workers").Result()
	require.NoError(t, err)
	return p.Count
}

func TestConsumerHandlesAndAcks(t *testing.T) {
	h := &recordingHandler{}
	c, client := newTestConsumer(t, h)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "auth:maintenance", Values: map[string]any{"type": "blacklist.purge"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Equal(t, []string{"blacklist.purge"}, h.seen)
	assert.Zero(t, pendingCount(t, client))
}

func TestConsumerLeavesFailedMessagesPending(t *testing.T) {
	h := &recordingHandler{err: errors.New("database down")}
	c, client := newTestConsumer(t, h)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "auth:maintenance", Values: map[string]any{"type": "blacklist.purge"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Len(t, h.seen, 1)
	assert.EqualValues(t, 1, pendingCount(t, client))
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	assert.NoError(t, c.EnsureGroup(context.Background()))
}
