package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/portal/internal/storage"
)

func newRedisStore(t *testing.T) (*storage.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedisStore(client), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set all writes every key with ttl", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, s.SetAll(ctx, map[string]string{"k1": "v1", "k2": "v2"}, time.Hour))

		assert.True(t, mr.Exists("k1"))
		assert.True(t, mr.Exists("k2"))
		assert.Equal(t, time.Hour, mr.TTL("k1"))

		val, err := s.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, "v2", val)
	})

	t.Run("get missing", func(t *testing.T) {
		s, _ := newRedisStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, s.SetAll(ctx, map[string]string{"k1": "v1", "k2": "v2"}, 0))
		require.NoError(t, s.Delete(ctx, "k1", "k2", "k3"))
		assert.False(t, mr.Exists("k1"))
		assert.False(t, mr.Exists("k2"))
	})

	t.Run("take", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, s.SetAll(ctx, map[string]string{"k": "v"}, 0))

		val, err := s.Take(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v", val)
		assert.False(t, mr.Exists("k"))

		_, err = s.Take(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete if equal", func(t *testing.T) {
		s, mr := newRedisStore(t)
		require.NoError(t, s.SetAll(ctx, map[string]string{"k": "new"}, 0))

		ok, err := s.DeleteIfEqual(ctx, "k", "old")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, mr.Exists("k"))

		ok, err = s.DeleteIfEqual(ctx, "k", "new")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, mr.Exists("k"))

		ok, err = s.DeleteIfEqual(ctx, "missing", "new")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("lock", func(t *testing.T) {
		s, _ := newRedisStore(t)
		ok, err := s.Acquire(ctx, "lock", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Acquire(ctx, "lock", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Release(ctx, "lock"))
		ok, err = s.Acquire(ctx, "lock", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ping", func(t *testing.T) {
		s, _ := newRedisStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
