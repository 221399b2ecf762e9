package redisstore_test

import (
	"context"
	"testing"
	"time"

	redisstore "marketdata-service/internal/infrastructure/redis"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := redisstore.NewLock(client, time.Hour)

	ctx := context.Background()
	ok, err := lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := redisstore.NewLock(client, time.Hour)

	ctx := context.Background()
	ok, err := lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "refresh"))

	ok, err = lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTTL_ExpiresHeldLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := redisstore.NewLock(client, time.Minute)

	ctx := context.Background()
	ok, err := lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = lock.TryAcquire(ctx, "refresh")
	require.NoError(t, err)
	require.True(t, ok)
}
