package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxCalls int, period time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, maxCalls, period, "test:rate"), mr
}

func TestLimiter_AllowsWithinCapacity(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
}

func TestLimiter_BlocksBeyondCapacityUntilWindowTTL(t *testing.T) {
	l, mr := newTestLimiter(t, 1, 2*time.Second)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx) }()

	select {
	case <-done:
		t.Fatal("acquire should have blocked on a full window")
	case <-time.After(50 * time.Millisecond):
	}

	mr.FastForward(3 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire did not unblock after window TTL elapsed")
	}
}

func TestLimiter_BlockForHonoredAcrossAcquires(t *testing.T) {
	l, _ := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()
	l.BlockFor(ctx, 100*time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiter_FallsBackToLocalWhenRedisUnavailable(t *testing.T) {
	l, mr := newTestLimiter(t, 2, time.Minute)
	mr.Close()

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	l.mu.Lock()
	healthy := l.redisHealthy
	l.mu.Unlock()
	require.False(t, healthy)
}
