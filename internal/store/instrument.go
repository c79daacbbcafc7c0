package store

import (
	"context"
	"time"
)

// Instrument envuelve t para reportar la duración de cada operación a obs.
// Si t implementa Historian, la tabla devuelta también.
func Instrument(backend string, s Schema, t Table, obs OpObserver) Table {
	if obs == nil {
		return t
	}
	it := &instrumented{backend: backend, table: s.Table, next: t, obs: obs}
	if h, ok := t.(Historian); ok {
		return &instrumentedHistorian{instrumented: it, hist: h}
	}
	return it
}

type instrumented struct {
	backend string
	table   string
	next    Table
	obs     OpObserver
}

func (t *instrumented) observe(op string, start time.Time) {
	t.obs(t.backend, t.table, op, time.Since(start))
}

func (t *instrumented) StoreOne(ctx context.Context, rec Record) (Record, error) {
	defer t.observe("store_one", time.Now())
	return t.next.StoreOne(ctx, rec)
}

func (t *instrumented) RetrieveOne(ctx context.Context, q Query) (Record, error) {
	defer t.observe("retrieve_one", time.Now())
	return t.next.RetrieveOne(ctx, q)
}

func (t *instrumented) RetrieveMany(ctx context.Context, q *Query) ([]Record, error) {
	defer t.observe("retrieve_many", time.Now())
	return t.next.RetrieveMany(ctx, q)
}

func (t *instrumented) UpdateMany(ctx context.Context, q Query) ([]Record, error) {
	defer t.observe("update_many", time.Now())
	return t.next.UpdateMany(ctx, q)
}

func (t *instrumented) RemoveMany(ctx context.Context, q *Query) ([]Record, error) {
	defer t.observe("remove_many", time.Now())
	return t.next.RemoveMany(ctx, q)
}

type instrumentedHistorian struct {
	*instrumented
	hist Historian
}

func (t *instrumentedHistorian) History(ctx context.Context, key string) ([]Record, error) {
	defer t.observe("history", time.Now())
	return t.hist.History(ctx, key)
}
