package store

import (
	"fmt"
	"strings"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

// Op es un operador de comparación del where.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reporta si op es uno de los seis operadores soportados.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Combinator une las condiciones: todas AND o todas OR, sin precedencia mixta.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Condition es un predicado {key op value}.
type Condition struct {
	Key   string
	Op    Op
	Value any
}

// Query es la consulta del Storage Port.
//
//   - Where vacío matchea todos los registros.
//   - Set es el patch de UpdateMany; un valor nil borra el campo.
//   - Returning proyecta los registros devueltos (vacío = registro completo).
type Query struct {
	Where      []Condition
	Combinator Combinator
	Set        Record
	Returning  []string
}

// Where crea una query con una sola condición.
func Where(key string, op Op, value any) *Query {
	return &Query{Where: []Condition{{Key: key, Op: op, Value: value}}, Combinator: And}
}

// And agrega una condición; si la query era OR pasa a ser inválida (Validate lo detecta).
func (q *Query) And(key string, op Op, value any) *Query {
	if len(q.Where) > 0 && q.combinator() == Or {
		q.Combinator = "mixed"
	} else {
		q.Combinator = And
	}
	q.Where = append(q.Where, Condition{Key: key, Op: op, Value: value})
	return q
}

// Or agrega una condición combinada con OR.
func (q *Query) Or(key string, op Op, value any) *Query {
	if len(q.Where) > 1 && q.combinator() == And {
		q.Combinator = "mixed"
	} else {
		q.Combinator = Or
	}
	q.Where = append(q.Where, Condition{Key: key, Op: op, Value: value})
	return q
}

// WithSet fija el patch de actualización.
func (q *Query) WithSet(set Record) *Query {
	q.Set = set
	return q
}

// WithReturning fija la proyección de los registros devueltos.
func (q *Query) WithReturning(cols ...string) *Query {
	q.Returning = cols
	return q
}

func (q *Query) combinator() Combinator {
	if q.Combinator == "" {
		return And
	}
	return q.Combinator
}

// Validate chequea operadores, combinador y columnas contra el schema, y
// canoniza cada valor del where al tipo de su columna: todos los backends
// comparan los mismos valores. Un valor no convertible (1.5 en una columna
// int) es ErrInvalidInput.
func (q *Query) Validate(s Schema) error {
	if q == nil {
		return nil
	}
	c := q.combinator()
	if c != And && c != Or {
		return fmt.Errorf("%w: unsupported combinator %q", repository.ErrInvalidInput, q.Combinator)
	}
	where := make([]Condition, len(q.Where))
	for i, cond := range q.Where {
		if !cond.Op.Valid() {
			return fmt.Errorf("%w: unsupported operator %q", repository.ErrInvalidInput, cond.Op)
		}
		col, ok := s.Column(cond.Key)
		if !ok {
			return fmt.Errorf("%w: unknown column %q in %s", repository.ErrInvalidInput, cond.Key, s.Table)
		}
		if cond.Value != nil {
			v, err := coerce(col, cond.Value)
			if err != nil {
				return err
			}
			cond.Value = v
		}
		where[i] = cond
	}
	for _, col := range q.Returning {
		if _, ok := s.Column(col); !ok {
			return fmt.Errorf("%w: unknown column %q in %s", repository.ErrInvalidInput, col, s.Table)
		}
	}
	for k := range q.Set {
		if k == s.Key {
			return fmt.Errorf("%w: primary key %q cannot be updated", repository.ErrInvalidInput, k)
		}
		if _, ok := s.Column(k); !ok {
			return fmt.Errorf("%w: unknown column %q in %s", repository.ErrInvalidInput, k, s.Table)
		}
	}
	// copia nueva: no se pisa el slice que comparte el caller
	q.Where = where
	return nil
}

// Matches evalúa el where contra r. Una query nil o sin condiciones matchea todo.
func (q *Query) Matches(r Record) bool {
	if q == nil || len(q.Where) == 0 {
		return true
	}
	if q.combinator() == Or {
		for _, c := range q.Where {
			if c.Eval(r) {
				return true
			}
		}
		return false
	}
	for _, c := range q.Where {
		if !c.Eval(r) {
			return false
		}
	}
	return true
}

// Project aplica Returning sobre una copia de r.
func (q *Query) Project(r Record) Record {
	if q == nil || len(q.Returning) == 0 {
		return r.Clone()
	}
	out := make(Record, len(q.Returning))
	for _, k := range q.Returning {
		if v, ok := r[k]; ok && v != nil {
			out[k] = v
		}
	}
	return out
}

// Eval evalúa la condición sobre r.
// Campos ausentes o nil solo son iguales a nil; los operadores de orden
// sobre ausentes dan false. Los números se comparan por valor.
func (c Condition) Eval(r Record) bool {
	v := r[c.Key]
	if v == nil || c.Value == nil {
		same := v == nil && c.Value == nil
		switch c.Op {
		case OpEq:
			return same
		case OpNe:
			return !same
		}
		return false
	}
	cmp, ok := compare(v, c.Value)
	if !ok {
		// tipos incomparables: solo != es verdadero
		return c.Op == OpNe
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// compare devuelve -1/0/1 y false si a y b no son comparables.
// bool solo admite igualdad: true/false se ordenan false<true para que == funcione.
func compare(a, b any) (int, bool) {
	if ai, ok := repository.AsInt64(a); ok {
		if bi, ok := repository.AsInt64(b); ok {
			return cmpOrdered(ai, bi), true
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return cmpOrdered(af, bf), true
		}
		return 0, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
