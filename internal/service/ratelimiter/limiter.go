// Package ratelimiter implements a distributed sliding-window limiter:
// a Redis-backed INCR/WATCH counter with a continuous
// local-regeneration fallback when the shared store is unavailable.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealityreport/socializer/internal/adapter/observability"
)

// Limiter mediates access to an external rate-limited resource (the Reddit
// API at ~N calls per window). It coordinates across worker processes via
// Redis and falls back to a per-process token regenerator if Redis is down.
type Limiter struct {
	redis     *redis.Client
	maxCalls  int
	period    time.Duration
	namespace string

	logger *slog.Logger

	mu            sync.Mutex
	redisHealthy  bool
	localAllow    float64
	localLastTick time.Time
	localBlockUntil time.Time
}

// New constructs a Limiter. namespace scopes the Redis keys (e.g. "reddit:rate").
func New(client *redis.Client, maxCalls int, period time.Duration, namespace string) *Limiter {
	if maxCalls < 1 {
		maxCalls = 1
	}
	if period < time.Second {
		period = time.Second
	}
	return &Limiter{
		redis:         client,
		maxCalls:      maxCalls,
		period:        period,
		namespace:     namespace,
		logger:        slog.Default().With(slog.String("component", "ratelimiter")),
		redisHealthy:  true,
		localAllow:    float64(maxCalls),
		localLastTick: time.Now(),
	}
}

func (l *Limiter) counterKey(window int64) string {
	return fmt.Sprintf("%s:counter:%d", l.namespace, window)
}

func (l *Limiter) blockKey() string {
	return l.namespace + ":blocked_until"
}

// Acquire blocks until a token is available.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	defer func() {
		observability.RedditRateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	l.mu.Lock()
	healthy := l.redisHealthy
	l.mu.Unlock()

	if !healthy {
		return l.acquireLocal(ctx)
	}
	if err := l.respectDistributedBlock(ctx); err != nil {
		return l.acquireLocal(ctx)
	}
	if err := l.acquireDistributed(ctx); err != nil {
		l.logger.Warn("redis rate limiter unavailable, falling back to local limiter", slog.Any("error", err))
		l.mu.Lock()
		l.redisHealthy = false
		l.mu.Unlock()
		return l.acquireLocal(ctx)
	}
	return nil
}

// BlockFor informs the limiter of a service-imposed cool-off (e.g. Retry-After).
// Persists a blocked-until epoch in Redis (TTL=seconds) and a monotonic local
// deadline; subsequent Acquire calls wait out both.
func (l *Limiter) BlockFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	l.setLocalBlock(d)

	l.mu.Lock()
	healthy := l.redisHealthy
	l.mu.Unlock()
	if !healthy {
		return
	}

	blockedUntil := time.Now().Add(d).Unix()
	if err := l.redis.Set(ctx, l.blockKey(), blockedUntil, d).Err(); err != nil {
		l.logger.Debug("unable to persist distributed block window", slog.Any("error", err))
		l.mu.Lock()
		l.redisHealthy = false
		l.mu.Unlock()
	}
}

func (l *Limiter) acquireDistributed(ctx context.Context) error {
	for {
		window := time.Now().Unix() / int64(l.period/time.Second)
		key := l.counterKey(window)

		var waitFor time.Duration
		err := l.redis.Watch(ctx, func(tx *redis.Tx) error {
			currentRaw, err := tx.Get(ctx, key).Int()
			if err != nil && err != redis.Nil {
				return err
			}
			if currentRaw < l.maxCalls {
				_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Incr(ctx, key)
					pipe.Expire(ctx, key, l.period+time.Second)
					return nil
				})
				return err
			}
			ttl, err := tx.TTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = l.period
			}
			waitFor = ttl
			return errWindowFull
		}, key)

		if err == nil {
			return nil
		}
		if err == errWindowFull {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitFor):
			}
			continue
		}
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
}

var errWindowFull = fmt.Errorf("rate limit window full")

func (l *Limiter) respectDistributedBlock(ctx context.Context) error {
	blockedRaw, err := l.redis.Get(ctx, l.blockKey()).Int64()
	if err != nil && err != redis.Nil {
		l.logger.Debug("failed to read distributed block value", slog.Any("error", err))
		l.mu.Lock()
		l.redisHealthy = false
		l.mu.Unlock()
		return err
	}
	if err == nil {
		wait := time.Until(time.Unix(blockedRaw, 0))
		if wait > 0 {
			l.logger.Debug("rate limiter waiting for distributed block to clear", slog.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return l.waitLocalBlock(ctx)
}

func (l *Limiter) setLocalBlock(d time.Duration) {
	until := time.Now().Add(d)
	l.mu.Lock()
	if until.After(l.localBlockUntil) {
		l.localBlockUntil = until
	}
	l.mu.Unlock()
}

func (l *Limiter) waitLocalBlock(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Until(l.localBlockUntil)
	l.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// acquireLocal implements continuous token regeneration at rate
// capacity/period; allowance never exceeds capacity; deficit waits
// proportional to shortfall.
func (l *Limiter) acquireLocal(ctx context.Context) error {
	for {
		if err := l.waitLocalBlock(ctx); err != nil {
			return err
		}

		l.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(l.localLastTick).Seconds()
		l.localLastTick = now
		ratePerSec := float64(l.maxCalls) / l.period.Seconds()
		l.localAllow += elapsed * ratePerSec
		if l.localAllow > float64(l.maxCalls) {
			l.localAllow = float64(l.maxCalls)
		}
		if l.localAllow >= 1.0 {
			l.localAllow -= 1.0
			l.mu.Unlock()
			return nil
		}
		deficit := 1.0 - l.localAllow
		wait := time.Duration(deficit * (l.period.Seconds() / float64(l.maxCalls)) * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
