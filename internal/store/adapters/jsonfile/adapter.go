// Package jsonfile implementa el Storage Port sobre un archivo JSON por tabla.
//
// Layout: <root>/<tabla>.json con un objeto {clave primaria: registro}.
// Cada operación lee el archivo entero, muta en memoria y reescribe con
// atomicwrite. No hay locks ni aislamiento entre procesos: la correctitud
// asume un único escritor por root.
package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const adapterName = "jsonfile"

func init() {
	store.RegisterAdapter(&jsonfileAdapter{})
}

type jsonfileAdapter struct{}

func (a *jsonfileAdapter) Name() string { return adapterName }

func (a *jsonfileAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	root := cfg.Root
	if root == "" {
		root = "data"
	}

	info, err := os.Stat(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: jsonfile: root path: %w", repository.ErrBackendIO, err)
		}
		if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
			return nil, fmt.Errorf("%w: jsonfile: create root %s: %w", repository.ErrBackendIO, root, mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: jsonfile: root path is not a directory: %s", repository.ErrBackendIO, root)
	}

	return &jsonfileConnection{root: root, observer: cfg.Observer}, nil
}

type jsonfileConnection struct {
	root     string
	observer store.OpObserver
}

func (c *jsonfileConnection) Name() string { return adapterName }

func (c *jsonfileConnection) Ping(ctx context.Context) error {
	if _, err := os.Stat(c.root); err != nil {
		return fmt.Errorf("%w: jsonfile: %w", repository.ErrBackendIO, err)
	}
	return nil
}

func (c *jsonfileConnection) Close() error { return nil }

func (c *jsonfileConnection) Table(s store.Schema) (store.Table, error) {
	t := &table{schema: s, path: filepath.Join(c.root, s.Table+".json")}
	return store.Instrument(adapterName, s, t, c.observer), nil
}
