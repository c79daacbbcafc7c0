package jsonl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/util/atomicwrite"
)

type table struct {
	schema store.Schema
	path   string
	now    func() time.Time
}

var _ store.Historian = (*table)(nil)

func (t *table) events(ctx context.Context) ([]Event, error) {
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: jsonl: open %s: %w", repository.ErrBackendIO, t.schema.Table, err)
	}
	defer f.Close()
	return decodeEvents(t.schema, f)
}

func (t *table) state(ctx context.Context) (store.Rows, error) {
	evs, err := t.events(ctx)
	if err != nil {
		return nil, err
	}
	return Reduce(evs), nil
}

// append escribe una línea por registro. deleted marca bajas lógicas.
func (t *table) append(ctx context.Context, recs []store.Record, deleted bool) error {
	if err := store.CtxErr(ctx); err != nil {
		return err
	}
	ts := t.now().UTC().Format(time.RFC3339Nano)
	lines := make([][]byte, 0, len(recs))
	for _, r := range recs {
		id, err := t.schema.KeyOf(r)
		if err != nil {
			return err
		}
		ev := Event{ID: id, CreatedAt: ts, Deleted: deleted}
		if !deleted {
			ev.Fields = r
		}
		b, err := encodeEvent(ev)
		if err != nil {
			return fmt.Errorf("%w: jsonl: encode %s: %w", repository.ErrBackendIO, t.schema.Table, err)
		}
		lines = append(lines, b)
	}
	if err := atomicwrite.AppendLines(t.path, lines, 0o600); err != nil {
		return fmt.Errorf("%w: jsonl: %w", repository.ErrBackendIO, err)
	}
	return nil
}

func (t *table) StoreOne(ctx context.Context, rec store.Record) (store.Record, error) {
	rows, err := t.state(ctx)
	if err != nil {
		return nil, err
	}
	_, out, err := rows.Insert(t.schema, rec)
	if err != nil {
		return nil, err
	}
	if err := t.append(ctx, []store.Record{out}, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *table) RetrieveOne(ctx context.Context, q store.Query) (store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.state(ctx)
	if err != nil {
		return nil, err
	}
	return rows.SelectOne(q)
}

func (t *table) RetrieveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.state(ctx)
	if err != nil {
		return nil, err
	}
	return rows.Select(q), nil
}

func (t *table) UpdateMany(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.state(ctx)
	if err != nil {
		return nil, err
	}
	// Se persiste la versión completa; Returning solo afecta lo devuelto.
	full := q
	full.Returning = nil
	_, updated, err := rows.Update(t.schema, full)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return updated, nil
	}
	if err := t.append(ctx, updated, false); err != nil {
		return nil, err
	}
	out := make([]store.Record, len(updated))
	for i, r := range updated {
		out[i] = q.Project(r)
	}
	return out, nil
}

func (t *table) RemoveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.state(ctx)
	if err != nil {
		return nil, err
	}
	var all *store.Query
	if q != nil {
		cp := *q
		cp.Returning = nil
		all = &cp
	}
	_, removed := rows.Remove(all)
	if len(removed) == 0 {
		return removed, nil
	}
	if err := t.append(ctx, removed, true); err != nil {
		return nil, err
	}
	out := make([]store.Record, len(removed))
	for i, r := range removed {
		out[i] = q.Project(r)
	}
	return out, nil
}

// History devuelve todas las versiones de key en orden de escritura,
// incluidas las bajas lógicas, con su metadata (id, created_at, deleted).
func (t *table) History(ctx context.Context, key string) ([]store.Record, error) {
	evs, err := t.events(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0)
	for _, ev := range evs {
		if ev.ID == key {
			out = append(out, ev.version())
		}
	}
	return out, nil
}
