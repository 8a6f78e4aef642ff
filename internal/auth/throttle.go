package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts failed login attempts per (email, client IP) in Redis and
// blocks further attempts once the limit is reached inside the window. The
// throttle fails open: if Redis is unreachable, logins proceed.
type Throttle struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewThrottle constructs a Throttle.
func NewThrottle(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{client: client, limit: limit, window: window, logger: logger}
}

// Allow reports whether another attempt is permitted for the key.
func (t *Throttle) Allow(ctx context.Context, email, ip string) bool {
	if t == nil || t.client == nil || t.limit <= 0 {
		return true
	}
	count, err := t.client.Get(ctx, t.key(email, ip)).Int()
	if err != nil {
		if err != redis.Nil && t.logger != nil {
			t.logger.Warn("login throttle read", slog.Any("error", err))
		}
		return true
	}
	return count < t.limit
}

// RecordFailure increments the failure counter, starting the window on the
// first failure.
func (t *Throttle) RecordFailure(ctx context.Context, email, ip string) {
	if t == nil || t.client == nil {
		return
	}
	key := t.key(email, ip)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("login throttle incr", slog.Any("error", err))
		}
		return
	}
	if count == 1 {
		_ = t.client.Expire(ctx, key, t.window).Err()
	}
}

// Reset clears the counter after a successful login.
func (t *Throttle) Reset(ctx context.Context, email, ip string) {
	if t == nil || t.client == nil {
		return
	}
	if err := t.client.Del(ctx, t.key(email, ip)).Err(); err != nil && t.logger != nil {
		t.logger.Warn("login throttle reset", slog.Any("error", err))
	}
}

func (t *Throttle) key(email, ip string) string {
	return "login:attempts:" + strings.ToLower(strings.TrimSpace(email)) + ":" + ip
}
