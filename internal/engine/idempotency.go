package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyGuard suppresses repeated fanouts for the same event within a
// short window. The push transport is at-most-once and best-effort, but a
// double-clicked send button should not wake everyone twice.
type IdempotencyGuard struct {
	redisClient *redis.Client
	logger      *slog.Logger
	ttl         time.Duration
}

// NewIdempotencyGuard creates a guard that remembers event ids for ttl.
func NewIdempotencyGuard(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{
		redisClient: redisClient,
		logger:      logger,
		ttl:         ttl,
	}
}

// FirstSend records the event id and reports whether this is the first send
// within the guard window. Fails open: if Redis is unavailable the send
// proceeds.
func (g *IdempotencyGuard) FirstSend(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return true
	}

	ok, err := g.redisClient.SetNX(ctx, "send:event:"+eventID, 1, g.ttl).Result()
	if err != nil {
		g.logger.Error("idempotency check failed", "error", err, "event_id", eventID)
		return true
	}

	if !ok {
		g.logger.Info("duplicate send suppressed", "event_id", eventID)
	}

	return ok
}

// Release forgets the event id so a retry is treated as a first send
// again. Called when a dispatch claimed by FirstSend never ran; without it
// a failed send would suppress the client's retry for the full guard
// window.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := g.redisClient.Del(ctx, "send:event:"+eventID).Err(); err != nil {
		g.logger.Error("failed to release idempotency key", "error", err, "event_id", eventID)
	}
}
