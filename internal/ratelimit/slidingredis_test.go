package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Limiter{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	limit := 2

	for i := 0; i < limit; i++ {
		dec, err := limiter.Allow(ctx, "key", window, limit)
		require.NoError(t, err)
		require.True(t, dec.Allowed, "request %d should be allowed", i)
		require.Equal(t, limit-(i+1), dec.Remaining)
	}

	dec, err := limiter.Allow(ctx, "key", window, limit)
	require.NoError(t, err)
	require.False(t, dec.Allowed, "request over budget should be rejected")
	require.Zero(t, dec.Remaining)

	mr.FastForward(window)

	dec, err = limiter.Allow(ctx, "key", window, limit)
	require.NoError(t, err)
	require.True(t, dec.Allowed, "window has passed, budget should reset")
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	dec, err := Limiter{}.Allow(context.Background(), "key", time.Second, 1)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Limiter{Client: client, Prefix: "test:"}
	ctx := context.Background()

	dec, err := limiter.Allow(ctx, "a", time.Second, 1)
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	dec, err = limiter.Allow(ctx, "a", time.Second, 1)
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	dec, err = limiter.Allow(ctx, "b", time.Second, 1)
	require.NoError(t, err)
	require.True(t, dec.Allowed, "a separate key has its own budget")
}
