//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminating redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := NewRedisCache(Config{Type: "redis", URL: url, Prefix: "lattice-test"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	c := setupRedisCache(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))
		data, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), data)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := c.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k2", []byte("v2"), time.Minute))
		require.NoError(t, c.Delete(ctx, "k2"))
		_, err := c.Get(ctx, "k2")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
		time.Sleep(1500 * time.Millisecond)
		_, err := c.Get(ctx, "short")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("zero ttl persists", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
		time.Sleep(100 * time.Millisecond)
		_, err := c.Get(ctx, "forever")
		assert.NoError(t, err)
	})

	t.Run("json round trip", func(t *testing.T) {
		in := map[string]any{"name": "ada", "count": float64(2)}
		require.NoError(t, c.SetJSON(ctx, "doc", in, time.Minute))
		var out map[string]any
		require.NoError(t, c.GetJSON(ctx, "doc", &out))
		assert.Equal(t, in, out)
	})
}
