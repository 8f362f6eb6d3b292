package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueWritesTask(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewScheduler(client, "auth:maintenance", "0 0 * * * *", zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Enqueue(context.Background(), TaskBlacklistPurge))

	msgs, err := client.XRange(context.Background(), "auth:maintenance", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, TaskBlacklistPurge, msgs[0].Values["type"])
	assert.Equal(t, "2026-02-01T10:00:00Z", msgs[0].Values["requestedAt"])
}

func TestStartRejectsBadSchedule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewScheduler(client, "auth:maintenance", "every hour", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartDisabledWithoutQueue(t *testing.T) {
	s := NewScheduler(nil, "auth:maintenance", "0 0 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}
