package memory

import (
	"context"
	"sync/atomic"

	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

type table struct {
	schema store.Schema
	cell   *atomic.Pointer[store.Rows]
}

func (t *table) snapshot() store.Rows { return *t.cell.Load() }

// swap publica next sin comparar contra el snapshot leído (last-swap-wins).
func (t *table) swap(next store.Rows) { t.cell.Store(&next) }

func (t *table) StoreOne(ctx context.Context, rec store.Record) (store.Record, error) {
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	next, out, err := t.snapshot().Insert(t.schema, rec)
	if err != nil {
		return nil, err
	}
	t.swap(next)
	return out, nil
}

func (t *table) RetrieveOne(ctx context.Context, q store.Query) (store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	return t.snapshot().SelectOne(q)
}

func (t *table) RetrieveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	return t.snapshot().Select(q), nil
}

func (t *table) UpdateMany(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	next, out, err := t.snapshot().Update(t.schema, q)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		t.swap(next)
	}
	return out, nil
}

func (t *table) RemoveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	next, out := t.snapshot().Remove(q)
	if len(out) > 0 {
		t.swap(next)
	}
	return out, nil
}
