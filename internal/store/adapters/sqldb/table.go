package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

type table struct {
	db     *sql.DB
	d      *dialect
	schema store.Schema
}

func (t *table) columnList() string {
	return strings.Join(t.schema.ColumnNames(), ", ")
}

// translate mapea errores del driver al taxonomy del Storage Port.
func (t *table) translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case t.d.uniqueErr(err):
		return fmt.Errorf("%w: %s.%s: %w", repository.ErrAlreadyExists, t.schema.Table, op, err)
	case t.d.missingTable(err):
		return fmt.Errorf("%w: %s: table missing (run migrate): %w", repository.ErrBackendIO, t.schema.Table, err)
	}
	return fmt.Errorf("%w: %s.%s: %w", repository.ErrBackendIO, t.schema.Table, op, err)
}

func (t *table) StoreOne(ctx context.Context, rec store.Record) (store.Record, error) {
	norm, err := store.Normalize(t.schema, rec)
	if err != nil {
		return nil, err
	}
	if _, err := t.schema.KeyOf(norm); err != nil {
		return nil, err
	}

	var cols, marks []string
	var args []any
	for _, c := range t.schema.ColumnNames() {
		v, ok := norm[c]
		if !ok {
			continue
		}
		args = append(args, v)
		cols = append(cols, c)
		marks = append(marks, t.d.placeholder(len(args)))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.schema.Table, strings.Join(cols, ", "), strings.Join(marks, ", "), t.columnList())

	out, err := t.queryRecords(ctx, "store_one", query, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s.store_one: insert returned %d rows", repository.ErrBackendIO, t.schema.Table, len(out))
	}
	return out[0], nil
}

func (t *table) RetrieveOne(ctx context.Context, q store.Query) (store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	b := newBuilder(t.d, t.schema)
	where := b.where(&q)
	// LIMIT 2 alcanza para distinguir "exactamente uno".
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT 2",
		t.columnList(), t.schema.Table, where, t.schema.Key)

	out, err := t.queryRecords(ctx, "retrieve_one", query, b.args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d records match", repository.ErrNotFound, len(out))
	}
	return q.Project(out[0]), nil
}

func (t *table) RetrieveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	b := newBuilder(t.d, t.schema)
	where := b.where(q)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		t.columnList(), t.schema.Table, where, t.schema.Key)

	out, err := t.queryRecords(ctx, "retrieve_many", query, b.args...)
	if err != nil {
		return nil, err
	}
	t.sortByKey(out)
	return project(q, out), nil
}

func (t *table) UpdateMany(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	set, err := store.NormalizePatch(t.schema, q.Set)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		// patch vacío: no hay UPDATE válido, devuelve los matches tal cual
		return t.RetrieveMany(ctx, &q)
	}

	b := newBuilder(t.d, t.schema)
	assignments := b.assignments(set)
	where := b.where(&q)
	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s",
		t.schema.Table, assignments, where, t.columnList())

	out, err := t.queryRecords(ctx, "update_many", query, b.args...)
	if err != nil {
		return nil, err
	}
	t.sortByKey(out)
	return project(&q, out), nil
}

func (t *table) RemoveMany(ctx context.Context, q *store.Query) ([]store.Record, error) {
	if err := q.Validate(t.schema); err != nil {
		return nil, err
	}
	b := newBuilder(t.d, t.schema)
	where := b.where(q)
	query := fmt.Sprintf("DELETE FROM %s%s RETURNING %s", t.schema.Table, where, t.columnList())

	out, err := t.queryRecords(ctx, "remove_many", query, b.args...)
	if err != nil {
		return nil, err
	}
	t.sortByKey(out)
	return project(q, out), nil
}

// queryRecords ejecuta query y escanea todas las filas como registros normalizados.
// Columnas NULL quedan ausentes.
func (t *table) queryRecords(ctx context.Context, op, query string, args ...any) ([]store.Record, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.translate(op, err)
	}
	defer rows.Close()

	cols := t.schema.ColumnNames()
	out := make([]store.Record, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, t.translate(op, err)
		}
		raw := make(store.Record, len(cols))
		for i, c := range cols {
			raw[c] = vals[i]
		}
		rec, err := store.Normalize(t.schema, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", repository.ErrBackendIO, t.schema.Table, op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.translate(op, err)
	}
	return out, nil
}

func (t *table) sortByKey(recs []store.Record) {
	key := t.schema.Key
	sort.Slice(recs, func(i, j int) bool {
		a, _ := recs[i][key].(string)
		b, _ := recs[j][key].(string)
		return a < b
	})
}

func project(q *store.Query, recs []store.Record) []store.Record {
	if q == nil || len(q.Returning) == 0 {
		return recs
	}
	out := make([]store.Record, len(recs))
	for i, r := range recs {
		out[i] = q.Project(r)
	}
	return out
}
