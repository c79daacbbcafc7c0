package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

// Record es un registro plano: columna → valor canónico (string, int64, bool).
// Los campos ausentes no figuran en el mapa.
type Record map[string]any

// Clone devuelve una copia superficial (los valores son escalares).
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table es el Storage Port: el contrato CRUD que todos los adapters
// implementan con resultados observablemente idénticos.
//
// Errores: repository.ErrNotFound, ErrAlreadyExists, ErrBackendIO, ErrConflict,
// ErrInvalidInput. Nunca panic.
type Table interface {
	// StoreOne inserta un registro nuevo. ErrAlreadyExists si la clave colisiona.
	StoreOne(ctx context.Context, rec Record) (Record, error)

	// RetrieveOne devuelve el único registro que matchea.
	// ErrNotFound si matchean cero o más de uno.
	RetrieveOne(ctx context.Context, q Query) (Record, error)

	// RetrieveMany devuelve los registros que matchean, ordenados por clave.
	// q nil devuelve la tabla completa.
	RetrieveMany(ctx context.Context, q *Query) ([]Record, error)

	// UpdateMany aplica q.Set a cada registro que matchea y devuelve los
	// registros actualizados (o la proyección q.Returning).
	UpdateMany(ctx context.Context, q Query) ([]Record, error)

	// RemoveMany borra (o marca borrados) los registros que matchean.
	// q nil vacía la tabla.
	RemoveMany(ctx context.Context, q *Query) ([]Record, error)
}

// Historian es la capacidad opcional de listar todas las versiones de una clave
// en orden de escritura. Solo la ofrecen backends append-only.
type Historian interface {
	History(ctx context.Context, key string) ([]Record, error)
}

// ─── Rows: motor en memoria compartido por memory, jsonfile y jsonl ───

// Rows es el estado materializado de una tabla: clave primaria → registro.
// Las operaciones son copy-on-write: nunca mutan el receptor.
type Rows map[string]Record

// Select devuelve copias de los registros que matchean q, ordenados por clave.
func (rows Rows) Select(q *Query) []Record {
	out := make([]Record, 0)
	for _, k := range rows.sortedKeys() {
		r := rows[k]
		if q.Matches(r) {
			out = append(out, q.Project(r))
		}
	}
	return out
}

// SelectOne aplica la regla de RetrieveOne: exactamente un match.
func (rows Rows) SelectOne(q Query) (Record, error) {
	var found Record
	n := 0
	for _, k := range rows.sortedKeys() {
		if q.Matches(rows[k]) {
			n++
			found = rows[k]
		}
	}
	if n != 1 {
		return nil, fmt.Errorf("%w: %d records match", repository.ErrNotFound, n)
	}
	return q.Project(found), nil
}

// Insert devuelve un nuevo Rows con rec agregado.
func (rows Rows) Insert(s Schema, rec Record) (Rows, Record, error) {
	norm, err := Normalize(s, rec)
	if err != nil {
		return rows, nil, err
	}
	key, err := s.KeyOf(norm)
	if err != nil {
		return rows, nil, err
	}
	if _, exists := rows[key]; exists {
		return rows, nil, fmt.Errorf("%w: %s %q", repository.ErrAlreadyExists, s.Key, key)
	}
	next := rows.copy(1)
	next[key] = norm
	return next, norm.Clone(), nil
}

// Update devuelve un nuevo Rows con q.Set aplicado a los matches y los
// registros resultantes (proyectados por q.Returning).
func (rows Rows) Update(s Schema, q Query) (Rows, []Record, error) {
	set, err := NormalizePatch(s, q.Set)
	if err != nil {
		return rows, nil, err
	}
	next := rows.copy(0)
	out := make([]Record, 0)
	for _, k := range rows.sortedKeys() {
		r := rows[k]
		if !q.Matches(r) {
			continue
		}
		updated := ApplyPatch(r, set)
		next[k] = updated
		out = append(out, q.Project(updated))
	}
	return next, out, nil
}

// Remove devuelve un nuevo Rows sin los matches y los registros eliminados.
func (rows Rows) Remove(q *Query) (Rows, []Record) {
	next := rows.copy(0)
	out := make([]Record, 0)
	for _, k := range rows.sortedKeys() {
		r := rows[k]
		if !q.Matches(r) {
			continue
		}
		delete(next, k)
		out = append(out, q.Project(r))
	}
	return next, out
}

func (rows Rows) copy(extra int) Rows {
	next := make(Rows, len(rows)+extra)
	for k, v := range rows {
		next[k] = v
	}
	return next
}

func (rows Rows) sortedKeys() []string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyPatch devuelve una copia de r con set aplicado; nil borra el campo.
func ApplyPatch(r, set Record) Record {
	out := r.Clone()
	for k, v := range set {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// CtxErr devuelve ErrBackendIO envolviendo ctx.Err() si el contexto terminó.
func CtxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrBackendIO, err)
	}
	return nil
}
