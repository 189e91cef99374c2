package rate

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds callback throttle tuning parameters.
type Config struct {
	Enabled       bool
	MaxAttempts   int
	CooldownRange time.Duration
}

// Limiter enforces a per-remote-address budget on callback invocations using
// Redis counters. The correlation id is unguessable by construction; the
// throttle bounds how fast an attacker can probe anyway.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a callback [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckCallback records a callback hit for the remote address and reports
// whether it is within budget. Returns ErrRateLimited when over.
func (l *Limiter) CheckCallback(ctx context.Context, remoteAddr string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if host == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, callbackKey(host), l.config.CooldownRange)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func callbackKey(host string) string {
	return "acb:" + host
}
