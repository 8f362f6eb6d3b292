package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/MandraVEVO/ecommerce/internal/models"
)

const (
	markBlacklisted = "1"
	markClean       = "0"
)

// BlacklistBackend is the durable store behind the cache.
type BlacklistBackend interface {
	Insert(ctx context.Context, entry models.BlacklistEntry) error
	Contains(ctx context.Context, token string) (bool, error)
}

// LookupRecorder receives one result label per Contains call.
type LookupRecorder interface {
	BlacklistLookup(result string)
}

type BlacklistCacheConfig struct {
	Prefix      string
	NegativeTTL time.Duration
	Now         func() time.Time
}

// BlacklistCache is a read-through redis cache over the blacklist table. The
// table stays authoritative: writes go to it first, and any redis failure
// falls back to it. Redis calls run through a circuit breaker so a dead
// redis costs one fast failure per request instead of a dial timeout.
type BlacklistCache struct {
	backend BlacklistBackend
	redis   redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	prefix  string
	negTTL  time.Duration
	now     func() time.Time
	metrics LookupRecorder
	log     zerolog.Logger
}

func NewBlacklistCache(backend BlacklistBackend, client redis.UniversalClient, cfg BlacklistCacheConfig, metrics LookupRecorder, log zerolog.Logger) *BlacklistCache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "auth:blacklist:"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "blacklist-redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &BlacklistCache{
		backend: backend,
		redis:   client,
		breaker: breaker,
		prefix:  prefix,
		negTTL:  cfg.NegativeTTL,
		now:     now,
		metrics: metrics,
		log:     log,
	}
}

// Insert records the entry durably, then marks it in redis until the token
// would have expired anyway.
func (c *BlacklistCache) Insert(ctx context.Context, entry models.BlacklistEntry) error {
	if err := c.backend.Insert(ctx, entry); err != nil {
		return err
	}
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 || c.redis == nil {
		return nil
	}
	if _, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, c.key(entry.Token), markBlacklisted, ttl).Err()
	}); err != nil {
		c.log.Warn().Err(err).Msg("blacklist cache write failed")
	}
	return nil
}

// Contains answers from redis when it can and from the backend otherwise.
// Negative answers are cached briefly; positive ones until expiry.
func (c *BlacklistCache) Contains(ctx context.Context, token string) (bool, error) {
	if c.redis == nil {
		return c.fromBackend(ctx, token, "bypass")
	}

	key := c.key(token)
	res, err := c.breaker.Execute(func() (interface{}, error) {
		val, err := c.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return val, err
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("blacklist cache read failed, using database")
		return c.fromBackend(ctx, token, "fallback")
	}

	switch res.(string) {
	case markBlacklisted:
		c.record("hit")
		return true, nil
	case markClean:
		c.record("negative_hit")
		return false, nil
	}

	listed, err := c.fromBackend(ctx, token, "miss")
	if err != nil {
		return false, err
	}
	if !listed && c.negTTL > 0 {
		// NX: an Insert that landed after the backend read already set "1".
		_, _ = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.redis.SetNX(ctx, key, markClean, c.negTTL).Err()
		})
	}
	return listed, nil
}

func (c *BlacklistCache) fromBackend(ctx context.Context, token, result string) (bool, error) {
	c.record(result)
	listed, err := c.backend.Contains(ctx, token)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return listed, nil
}

func (c *BlacklistCache) record(result string) {
	if c.metrics != nil {
		c.metrics.BlacklistLookup(result)
	}
}

func (c *BlacklistCache) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return c.prefix + hex.EncodeToString(sum[:])
}
