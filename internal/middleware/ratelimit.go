package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MandraVEVO/ecommerce/internal/config"
)

const rateKeyPrefix = "auth:ratelimit"

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = interval_ms - (now_ms - last_refill)
	if retry_after_ms < 0 then retry_after_ms = 0 end
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RateLimit is a per client IP and route token bucket kept in redis. Redis
// errors let the request through.
func RateLimit(cfg config.RateLimitConfig, rdb redis.Scripter, log zerolog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || rdb == nil || cfg.Capacity <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	ttl := bucketTTL(cfg)

	return func(c *gin.Context) {
		key := rateKeyPrefix + ":" + c.FullPath() + ":" + c.ClientIP()
		args := []interface{}{
			time.Now().UnixMilli(),
			cfg.Capacity,
			cfg.RefillTokens,
			cfg.RefillInterval.Milliseconds(),
			ttl,
		}

		vals, err := tokenBucketScript.Run(c.Request.Context(), rdb, []string{key}, args...).Int64Slice()
		if err != nil || len(vals) != 3 {
			log.Warn().Err(err).Str("path", c.FullPath()).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000.0))
			c.Header("Retry-After", strconv.Itoa(secs))
			abort(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// bucketTTL keeps an idle bucket around long enough to refill completely.
func bucketTTL(cfg config.RateLimitConfig) int64 {
	if cfg.RefillTokens <= 0 || cfg.RefillInterval <= 0 {
		return 3600
	}
	intervals := (cfg.Capacity + cfg.RefillTokens - 1) / cfg.RefillTokens
	secs := int64((time.Duration(intervals) * cfg.RefillInterval).Seconds())
	if secs < 60 {
		secs = 60
	}
	return secs
}
