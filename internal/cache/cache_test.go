package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Config{Driver: "redis", Addr: mr.Addr(), Prefix: "revoked"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestClients(t *testing.T) {
	mem, err := New(context.Background(), Config{Driver: "memory", Prefix: "revoked"})
	require.NoError(t, err)
	rc, _ := newRedis(t)

	for name, c := range map[string]Client{"memory": mem, "redis": rc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Ping(ctx))

			_, err := c.Get(ctx, "jti-1")
			assert.True(t, IsNotFound(err))

			require.NoError(t, c.Set(ctx, "jti-1", "manual", 0))
			v, err := c.Get(ctx, "jti-1")
			require.NoError(t, err)
			assert.Equal(t, "manual", v)

			st, err := c.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), st.Keys)
			assert.Equal(t, name, st.Driver)
		})
	}
}

func TestRedisPrefixAndTTL(t *testing.T) {
	c, mr := newRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "jti-2", "bulk", time.Minute))
	assert.True(t, mr.Exists("revoked:jti-2"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(ctx, "jti-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTTL(t *testing.T) {
	c := NewMemory("", 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return IsNotFound(err)
	}, time.Second, 10*time.Millisecond)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.Misses, int64(1))
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Driver: "redis", Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestIncr(t *testing.T) {
	mem, err := New(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	rc, mr := newRedis(t)

	for name, c := range map[string]Client{"memory": mem, "redis": rc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, ttl, err := c.Incr(ctx, "rl:code", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)

			n, _, err = c.Incr(ctx, "rl:code", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})
	}

	// la expiración se fija en el mismo MULTI que el INCR y no se renueva
	assert.InDelta(t, time.Minute.Seconds(), mr.TTL("revoked:rl:code").Seconds(), 1)
	mr.FastForward(30 * time.Second)
	_, ttl, err := rc.Incr(context.Background(), "rl:code", time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, (30 * time.Second).Seconds(), ttl.Seconds(), 1)

	// la ventana vence y el contador arranca de nuevo
	mr.FastForward(2 * time.Minute)
	n, _, err := rc.Incr(context.Background(), "rl:code", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Greater(t, mr.TTL("revoked:rl:code"), time.Duration(0))
}

func TestRedisIncrIsSingleTransaction(t *testing.T) {
	c, mr := newRedis(t)
	ctx := context.Background()

	// una key sin TTL (p. ej. de un proceso que murió entre comandos) la recibe
	mr.Set("revoked:rl:stale", "3")
	n, ttl, err := c.Incr(ctx, "rl:stale", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)
	assert.InDelta(t, time.Minute.Seconds(), mr.TTL("revoked:rl:stale").Seconds(), 1)
}
