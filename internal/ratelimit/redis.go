// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 500 * time.Millisecond

// Redis is a fixed-window limiter shared by all instances using the same
// Redis server. Each window is a counter key that expires with the window.
type Redis struct {
	client    redis.Cmdable
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRedis creates a shared limiter. now may be nil.
func NewRedis(client redis.Cmdable, limit int, windowSize time.Duration, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{
		client:    client,
		limit:     limit,
		window:    windowSize,
		keyPrefix: "ratelimit",
		now:       now,
	}
}

// Allow increments the identifier's counter for the current window. When
// Redis is unreachable the request is let through and the error logged.
func (r *Redis) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	count, err := r.Hit(ctx, identifier)
	if err != nil {
		slog.Warn("rate_limit_store_unavailable", "error", err)
		return true, nil
	}
	return count <= int64(r.limit), nil
}

// Hit counts one request and returns the total for the current window.
func (r *Redis) Hit(ctx context.Context, identifier string) (int64, error) {
	key := r.key(identifier)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, r.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val(), nil
}

func (r *Redis) key(identifier string) string {
	slot := r.now().UnixNano() / int64(r.window)
	return fmt.Sprintf("%s:%s:%d", r.keyPrefix, identifier, slot)
}
