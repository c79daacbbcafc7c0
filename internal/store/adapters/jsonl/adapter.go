// Package jsonl implementa el Storage Port sobre un log append-only JSON-Lines.
//
// Layout: <root>/<tabla>.jsonl; cada línea es {"id", "created_at", ...campos}.
// Update y remove nunca reescriben historia: agregan una línea nueva con el
// registro completo (o "deleted": true). El estado actual es Reduce(log),
// O(n) por lectura. Un único escritor por root; sin locks.
package jsonl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const adapterName = "jsonl"

func init() {
	store.RegisterAdapter(&jsonlAdapter{})
}

type jsonlAdapter struct{}

func (a *jsonlAdapter) Name() string { return adapterName }

func (a *jsonlAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	root := cfg.Root
	if root == "" {
		root = "data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: jsonl: create root %s: %w", repository.ErrBackendIO, root, err)
	}
	return &jsonlConnection{root: root, observer: cfg.Observer, now: time.Now}, nil
}

type jsonlConnection struct {
	root     string
	observer store.OpObserver
	now      func() time.Time
}

func (c *jsonlConnection) Name() string { return adapterName }

func (c *jsonlConnection) Ping(ctx context.Context) error {
	if _, err := os.Stat(c.root); err != nil {
		return fmt.Errorf("%w: jsonl: %w", repository.ErrBackendIO, err)
	}
	return nil
}

func (c *jsonlConnection) Close() error { return nil }

func (c *jsonlConnection) Table(s store.Schema) (store.Table, error) {
	for _, reserved := range []string{fieldID, fieldCreatedAt, fieldDeleted} {
		if _, clash := s.Column(reserved); clash {
			return nil, fmt.Errorf("%w: jsonl: column %q of %s is reserved", repository.ErrInvalidInput, reserved, s.Table)
		}
	}
	t := &table{schema: s, path: filepath.Join(c.root, s.Table+".jsonl"), now: c.now}
	return store.Instrument(adapterName, s, t, c.observer), nil
}
