package sqldb

import (
	"fmt"
	"strings"

	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// builder arma fragmentos SQL acumulando los argumentos en orden.
// Los identificadores ya fueron validados contra el schema (Query.Validate).
type builder struct {
	d      *dialect
	schema store.Schema
	args   []any
}

func newBuilder(d *dialect, s store.Schema) *builder {
	return &builder{d: d, schema: s}
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

// assignments arma "col = $n, ..." en orden de schema. nil → NULL.
func (b *builder) assignments(set store.Record) string {
	parts := make([]string, 0, len(set))
	for _, c := range b.schema.ColumnNames() {
		v, ok := set[c]
		if !ok {
			continue
		}
		if v == nil {
			parts = append(parts, c+" = NULL")
			continue
		}
		parts = append(parts, c+" = "+b.bind(v))
	}
	return strings.Join(parts, ", ")
}

// where traduce el where con la misma semántica que Query.Matches:
// NULL solo es igual a nil, != incluye las filas con NULL y un valor
// incomparable con el tipo de la columna solo satisface !=.
func (b *builder) where(q *store.Query) string {
	if q == nil || len(q.Where) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q.Where))
	for _, c := range q.Where {
		parts = append(parts, b.condition(c))
	}
	joiner := " AND "
	if q.Combinator == store.Or {
		joiner = " OR "
	}
	return " WHERE " + strings.Join(parts, joiner)
}

func (b *builder) condition(c store.Condition) string {
	col, _ := b.schema.Column(c.Key)
	name := col.Name

	if c.Value == nil {
		switch c.Op {
		case store.OpEq:
			return name + " IS NULL"
		case store.OpNe:
			return name + " IS NOT NULL"
		}
		return "1 = 0"
	}

	ph := b.bind(c.Value) // ya canonizado por Query.Validate

	switch c.Op {
	case store.OpEq:
		return name + " = " + ph
	case store.OpNe:
		return fmt.Sprintf("(%s <> %s OR %s IS NULL)", name, ph, name)
	case store.OpLt:
		return name + " < " + ph
	case store.OpLe:
		return name + " <= " + ph
	case store.OpGt:
		return name + " > " + ph
	case store.OpGe:
		return name + " >= " + ph
	}
	return "1 = 0"
}
