package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MandraVEVO/ecommerce/internal/models"
	"github.com/MandraVEVO/ecommerce/internal/repository/memstore"
)

type recorder struct{ results []string }

func (r *recorder) BlacklistLookup(result string) { r.results = append(r.results, result) }

func newTestCache(t *testing.T) (*BlacklistCache, *memstore.Blacklist, *miniredis.Miniredis, *recorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := memstore.NewBlacklist()
	rec := &recorder{}
	c := NewBlacklistCache(backend, client, BlacklistCacheConfig{
		Prefix:      "test:bl:",
		NegativeTTL: 30 * time.Second,
	}, rec, zerolog.Nop())
	return c, backend, mr, rec
}

func entryFor(token string, ttl time.Duration) models.BlacklistEntry {
	now := time.Now().UTC()
	return models.BlacklistEntry{
		ID:            "bl-" + token,
		Token:         token,
		UserID:        "user-1",
		ExpiresAt:     now.Add(ttl),
		BlacklistedAt: now,
		Reason:        "user logout",
	}
}

func TestInsertWritesBackendAndCache(t *testing.T) {
	c, backend, mr, rec := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, entryFor("tok-a", 10*time.Minute)))
	assert.Equal(t, 1, backend.Len())
	assert.True(t, mr.Exists(c.key("tok-a")))

	listed, err := c.Contains(ctx, "tok-a")
	require.NoError(t, err)
	assert.True(t, listed)
	assert.Equal(t, []string{"hit"}, rec.results)
}

func TestContainsCachesNegativeAnswer(t *testing.T) {
	c, _, mr, rec := newTestCache(t)
	ctx := context.Background()

	listed, err := c.Contains(ctx, "tok-b")
	require.NoError(t, err)
	assert.False(t, listed)

	val, err := mr.Get(c.key("tok-b"))
	require.NoError(t, err)
	assert.Equal(t, markClean, val)

	listed, err = c.Contains(ctx, "tok-b")
	require.NoError(t, err)
	assert.False(t, listed)
	assert.Equal(t, []string{"miss", "negative_hit"}, rec.results)
}

func TestInsertOverridesNegativeEntry(t *testing.T) {
	c, _, _, _ := newTestCache(t)
	ctx := context.Background()

	listed, err := c.Contains(ctx, "tok-c")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, c.Insert(ctx, entryFor("tok-c", time.Minute)))

	listed, err = c.Contains(ctx, "tok-c")
	require.NoError(t, err)
	assert.True(t, listed)
}

func TestContainsFallsBackWhenRedisIsDown(t *testing.T) {
	c, backend, mr, rec := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, backend.Insert(ctx, entryFor("tok-d", time.Minute)))
	mr.Close()

	listed, err := c.Contains(ctx, "tok-d")
	require.NoError(t, err)
	assert.True(t, listed)
	assert.Equal(t, []string{"fallback"}, rec.results)
}

func TestInsertSucceedsWhenRedisIsDown(t *testing.T) {
	c, backend, mr, _ := newTestCache(t)
	mr.Close()

	require.NoError(t, c.Insert(context.Background(), entryFor("tok-e", time.Minute)))
	assert.Equal(t, 1, backend.Len())
}

func TestBackendErrorPropagates(t *testing.T) {
	c, backend, _, _ := newTestCache(t)
	backend.Err = errors.New("connection refused")

	_, err := c.Contains(context.Background(), "tok-f")
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")

	require.Error(t, c.Insert(context.Background(), entryFor("tok-f", time.Minute)))
}

func TestExpiredEntryIsNotCached(t *testing.T) {
	c, backend, mr, _ := newTestCache(t)

	require.NoError(t, c.Insert(context.Background(), entryFor("tok-g", -time.Minute)))
	assert.Equal(t, 1, backend.Len())
	assert.False(t, mr.Exists(c.key("tok-g")))
}

func TestKeyDoesNotContainToken(t *testing.T) {
	c, _, _, _ := newTestCache(t)
	key := c.key("secret-token-value")
	assert.NotContains(t, key, "secret-token-value")
	assert.Len(t, key, len("test:bl:")+64)
}

// racingBackend lets a logout land between the backend read and the
// negative cache write of a Contains call.
type racingBackend struct {
	*memstore.Blacklist
	onContains func()
}

func (b *racingBackend) Contains(ctx context.Context, token string) (bool, error) {
	listed, err := b.Blacklist.Contains(ctx, token)
	if b.onContains != nil {
		hook := b.onContains
		b.onContains = nil
		hook()
	}
	return listed, err
}

func TestLogoutDuringMissIsNotMaskedByNegativeEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := &racingBackend{Blacklist: memstore.NewBlacklist()}
	c := NewBlacklistCache(backend, client, BlacklistCacheConfig{
		Prefix:      "test:bl:",
		NegativeTTL: 30 * time.Second,
	}, nil, zerolog.Nop())
	ctx := context.Background()

	backend.onContains = func() {
		require.NoError(t, c.Insert(ctx, entryFor("tok-race", 10*time.Minute)))
	}

	listed, err := c.Contains(ctx, "tok-race")
	require.NoError(t, err)
	assert.False(t, listed)

	val, err := mr.Get(c.key("tok-race"))
	require.NoError(t, err)
	assert.Equal(t, markBlacklisted, val)

	listed, err = c.Contains(ctx, "tok-race")
	require.NoError(t, err)
	assert.True(t, listed)
}
