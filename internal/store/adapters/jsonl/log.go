package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// Campos de metadata de cada línea. No pueden ser columnas de un schema.
const (
	fieldID        = "id"
	fieldCreatedAt = "created_at"
	fieldDeleted   = "deleted"
)

// Event es una línea del log: una versión inmutable de un registro.
type Event struct {
	Seq       int    // posición ordinal en el archivo (0-based)
	ID        string // clave primaria
	CreatedAt string // RFC3339Nano, informativo
	Deleted   bool
	Fields    store.Record
}

// Reduce reconstruye el estado actual: fold sobre events quedándose con la
// última versión de cada id por posición ordinal (no por created_at, que puede
// empatar). Un evento deleted oculta la clave.
func Reduce(events []Event) store.Rows {
	rows := store.Rows{}
	for _, ev := range events {
		if ev.Deleted {
			delete(rows, ev.ID)
			continue
		}
		rows[ev.ID] = ev.Fields
	}
	return rows
}

// decodeEvents parsea el log línea a línea. Líneas vacías se ignoran.
func decodeEvents(s store.Schema, r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var events []Event
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		ev, err := decodeEvent(s, b)
		if err != nil {
			return nil, fmt.Errorf("%w: jsonl: %s line %d: %w", repository.ErrBackendIO, s.Table, line, err)
		}
		ev.Seq = len(events)
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: jsonl: scan %s: %w", repository.ErrBackendIO, s.Table, err)
	}
	return events, nil
}

func decodeEvent(s store.Schema, b []byte) (Event, error) {
	m := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Event{}, err
	}

	id, _ := m[fieldID].(string)
	if id == "" {
		return Event{}, fmt.Errorf("missing %q", fieldID)
	}
	ev := Event{ID: id}
	ev.CreatedAt, _ = m[fieldCreatedAt].(string)
	ev.Deleted, _ = m[fieldDeleted].(bool)
	delete(m, fieldID)
	delete(m, fieldCreatedAt)
	delete(m, fieldDeleted)

	if ev.Deleted {
		return ev, nil
	}
	fields, err := store.Normalize(s, m)
	if err != nil {
		return Event{}, err
	}
	if _, ok := fields[s.Key]; !ok {
		fields[s.Key] = id
	}
	ev.Fields = fields
	return ev, nil
}

// encodeEvent serializa una línea sin el '\n' final.
func encodeEvent(ev Event) ([]byte, error) {
	m := make(map[string]any, len(ev.Fields)+3)
	for k, v := range ev.Fields {
		m[k] = v
	}
	m[fieldID] = ev.ID
	m[fieldCreatedAt] = ev.CreatedAt
	if ev.Deleted {
		m[fieldDeleted] = true
	}
	return json.Marshal(m)
}

// version convierte un evento en el registro que devuelve History.
func (ev Event) version() store.Record {
	out := ev.Fields.Clone()
	if out == nil {
		out = store.Record{}
	}
	out[fieldID] = ev.ID
	out[fieldCreatedAt] = ev.CreatedAt
	if ev.Deleted {
		out[fieldDeleted] = true
	}
	return out
}
