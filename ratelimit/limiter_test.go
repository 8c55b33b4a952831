package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	l := NewRedisLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "otp:")

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "9000000000", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, err := l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "9111111111", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own window")

	mr.FastForward(time.Hour + time.Second)
	ok, err = l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")
}

func TestRedisLimiterRepairsMissingTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	l := NewRedisLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "otp:")

	// counter left behind without an expiry
	require.NoError(t, mr.Set("otp:9000000000", "3"))

	ok, err := l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("otp:9000000000"))
	got, err := mr.Get("otp:9000000000")
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	mr.FastForward(time.Hour + time.Second)
	ok, err = l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterKeepsWindowEnd(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	l := NewRedisLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "otp:")

	_, err := l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	mr.FastForward(30 * time.Minute)
	_, err = l.Allow(ctx, "9000000000", 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL("otp:9000000000"))
}

func TestUnlimited(t *testing.T) {
	ok, err := Unlimited{}.Allow(context.Background(), "k", 1, time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
}
