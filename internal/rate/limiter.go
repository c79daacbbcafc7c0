// Package rate limita intentos por clave con ventanas fijas sobre el cache.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/cache"
)

// ErrLimited indica que la clave agotó sus intentos en la ventana actual.
var ErrLimited = errors.New("rate limited")

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow: INCR por clave con expiración igual a Window.
type FixedWindow struct {
	Counter cache.Client
	Prefix  string
	Max     int64
	Window  time.Duration
}

func NewFixedWindow(counter cache.Client, prefix string, max int, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl:"
	}
	return &FixedWindow{Counter: counter, Prefix: prefix, Max: int64(max), Window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	k := l.Prefix + strings.ReplaceAll(key, " ", "_")
	hits, ttl, err := l.Counter.Incr(ctx, k, l.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate: %w", err)
	}

	res := Result{Allowed: hits <= l.Max, CurrentHits: hits}
	if res.Remaining = l.Max - hits; res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.Window
		}
	}
	return res, nil
}
