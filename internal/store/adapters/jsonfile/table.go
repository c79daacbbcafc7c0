package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/util/atomicwrite"
)

type table struct {
	schema store.Schema
	path   string
}

// load lee la tabla completa. Archivo inexistente = tabla vacía.
func (t *table) load(ctx context.Context) (store.Rows, error) {
	if err := store.CtxErr(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return store.Rows{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: jsonfile: read %s: %w", repository.ErrBackendIO, t.schema.Table, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return store.Rows{}, nil
	}

	raw := map[string]map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: jsonfile: decode %s: %w", repository.ErrBackendIO, t.schema.Table, err)
	}

	rows := make(store.Rows, len(raw))
	for k, m := range raw {
		rec, err := store.Normalize(t.schema, m)
		if err != nil {
			return nil, fmt.Errorf("%w: jsonfile: %s[%s]: %w", repository.ErrBackendIO, t.schema.Table, k, err)
		}
		rows[k] = rec
	}
	return rows, nil
}

// save reescribe el archivo completo de forma atómica.
func (t *table) save(ctx context.Context, rows store.Rows) error {
	if err := store.CtxErr(ctx); err != nil {
		return err
	}
	if err := atomicwrite.WriteJSON(t.path, rows, 0o600); err != nil {
		return fmt.Errorf("%w: jsonfile: write %s: %w", repository.ErrBackendIO, t.schema.Table, err)
	}
	return nil
}

func (t *table) StoreOne(ctx context.Context, rec store.Record) (store.Record, error) {
	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	next, out, err := rows.Insert(t.schema, rec)
	if err != nil {
		return nil, err
	}
	if err := t.save(ctx, next); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *table) RetrieveOne(ctx context.Context, q store.Query) (store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	return rows.SelectOne(q)
}

func (t *table) RetrieveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	return rows.Select(q), nil
}

func (t *table) UpdateMany(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	next, out, err := rows.Update(t.schema, q)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := t.save(ctx, next); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *table) RemoveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	rows, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	next, out := rows.Remove(q)
	if len(out) == 0 {
		return out, nil
	}
	if err := t.save(ctx, next); err != nil {
		return nil, err
	}
	return out, nil
}
