package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Útil para un solo proceso y para testing.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cliente de cache en memoria. defaultTTL <= 0 significa
// sin expiración por defecto.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(prefixed(c.prefix, key))
	if !ok {
		c.misses.Add(1)
		return "", ErrNotFound
	}
	c.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	switch {
	case ttl == 0:
		ttl = gocache.NoExpiration
	case ttl < 0:
		ttl = gocache.DefaultExpiration
	}
	c.c.Set(prefixed(c.prefix, key), value, ttl)
	return nil
}

func (c *memoryClient) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := prefixed(c.prefix, key)
	for i := 0; i < 2; i++ {
		_ = c.c.Add(k, int64(0), window) // no-op si ya existe
		n, err := c.c.IncrementInt64(k, 1)
		if err != nil {
			continue // expiró entre Add e Increment
		}
		var ttl time.Duration
		if _, exp, ok := c.c.GetWithExpiration(k); ok && !exp.IsZero() {
			ttl = time.Until(exp)
		}
		return n, ttl, nil
	}
	return 0, 0, fmt.Errorf("cache: incr %s: counter vanished", key)
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return nil
}

func (c *memoryClient) Close() error {
	c.c.Flush()
	return nil
}

func (c *memoryClient) Stats(ctx context.Context) (Stats, error) {
	// ItemCount incluye expirados aún no limpiados; DeleteExpired primero.
	c.c.DeleteExpired()
	return Stats{
		Driver: "memory",
		Keys:   int64(c.c.ItemCount()),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}, nil
}
