// Package cache provides the Redis client used for the advisory artifact
// mirror and the asynq broker.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client. Redis is advisory here, so an unreachable
// server is logged rather than fatal; callers get a client that will retry
// on use.
func New(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.String("addr", addr), slog.Any("error", err))
	}
	return client
}
