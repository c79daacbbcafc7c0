// Package memory implementa el adapter in-process del Storage Port.
//
// Cada tabla es una celda (atomic.Pointer) que apunta a un snapshot inmutable.
// Toda mutación es load → calcular snapshot nuevo → store, sin CAS y sin locks:
// con escritores concurrentes gana el último store y se pierden las
// actualizaciones calculadas sobre snapshots viejos. Solo para tests y demos.
//
// Las tablas son estado global del proceso por (namespace, tabla) y mueren
// con él.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const adapterName = "memory"

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return adapterName }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	return &memoryConnection{namespace: ns, observer: cfg.Observer}, nil
}

type memoryConnection struct {
	namespace string
	observer  store.OpObserver
}

func (c *memoryConnection) Name() string                   { return adapterName }
func (c *memoryConnection) Ping(ctx context.Context) error { return ctx.Err() }
func (c *memoryConnection) Close() error                   { return nil }

func (c *memoryConnection) Table(s store.Schema) (store.Table, error) {
	t := &table{schema: s, cell: cellFor(c.namespace, s.Table)}
	return store.Instrument(adapterName, s, t, c.observer), nil
}

// ─── Celdas globales ───

// cells solo protege el alta de celdas; las celdas en sí no usan locks.
var cells sync.Map // "namespace/table" → *atomic.Pointer[store.Rows]

func cellFor(ns, tbl string) *atomic.Pointer[store.Rows] {
	fresh := new(atomic.Pointer[store.Rows])
	empty := store.Rows{}
	fresh.Store(&empty)
	actual, _ := cells.LoadOrStore(ns+"/"+tbl, fresh)
	return actual.(*atomic.Pointer[store.Rows])
}

// Reset vacía todas las tablas de un namespace. Para tests.
func Reset(namespace string) {
	prefix := namespace + "/"
	cells.Range(func(k, v any) bool {
		if key := k.(string); len(key) > len(prefix) && key[:len(prefix)] == prefix {
			empty := store.Rows{}
			v.(*atomic.Pointer[store.Rows]).Store(&empty)
		}
		return true
	})
}
