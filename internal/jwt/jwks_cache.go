package jwt

import (
	"encoding/json"
	"sync"
	"time"
)

// JWKSCache cachea el JSON del JWKS público por un TTL corto.
type JWKSCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	load func() (json.RawMessage, error)
	now  func() time.Time

	data json.RawMessage
	exp  time.Time
	gen  uint64 // sube en cada Invalidate
}

func NewJWKSCache(ttl time.Duration, loader func() (json.RawMessage, error)) *JWKSCache {
	return &JWKSCache{ttl: ttl, load: loader, now: time.Now}
}

func (c *JWKSCache) Get() (json.RawMessage, error) {
	now := c.now()

	c.mu.RLock()
	if c.data != nil && now.Before(c.exp) {
		data := c.data
		c.mu.RUnlock()
		return data, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	data, err := c.load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// una carga que compitió con Invalidate no se guarda
	if c.gen == gen {
		c.data, c.exp = data, now.Add(c.ttl)
	}
	c.mu.Unlock()
	return data, nil
}

// Invalidate descarta el JWKS cacheado (después de rotar claves).
func (c *JWKSCache) Invalidate() {
	c.mu.Lock()
	c.data = nil
	c.gen++
	c.mu.Unlock()
}
