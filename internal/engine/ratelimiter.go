package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a per-endpoint sliding window limiter over Redis. It keeps
// a burst of fanouts from hammering one push-service endpoint. A Lua script
// atomically cleans expired entries, checks the count, and adds new entries.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	limit       int
	window      time.Duration
	script      *redis.Script
}

// Lua script for atomic sliding window rate limiting.
// 1. Remove entries older than the window
// 2. Count remaining entries
// 3. If under the limit, add a new entry and return 1 (allowed)
// 4. If at/over the limit, return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

-- Remove entries outside the sliding window
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

-- Count current entries in the window
local count = redis.call('ZCARD', key)

if count < limit then
    -- Under the limit: add this request and allow
    redis.call('ZADD', key, now, member)
    -- Set TTL so the key auto-expires after the window
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    -- At the limit: deny
    return 0
end
`)

// NewRateLimiter creates a limiter allowing limit deliveries per endpoint
// per window. A limit of zero disables limiting entirely.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		limit:       limit,
		window:      window,
		script:      slidingWindowScript,
	}
}

// endpointKey hashes the endpoint so capability URLs never appear as Redis
// keys.
func endpointKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return "rl:endpoint:" + hex.EncodeToString(sum[:8])
}

// Allow checks if a delivery to this endpoint is within the rate limit.
// Returns true if allowed, false if rate limited. Fails open when Redis is
// unavailable.
func (rl *RateLimiter) Allow(ctx context.Context, endpoint string) bool {
	if rl.limit <= 0 {
		return true // No rate limit configured
	}

	key := endpointKey(endpoint)
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000) // unique member

	result, err := rl.script.Run(ctx, rl.redisClient, []string{key},
		now, rl.window.Milliseconds(), rl.limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err)
		return true // Fail open — allow the delivery if Redis fails
	}

	if result == 0 {
		rl.logger.Debug("delivery rate limited", "limit", rl.limit)
		return false
	}

	return true
}
