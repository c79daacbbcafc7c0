package repository

import (
	"encoding/json"
	"fmt"
	"math"
)

// Los registros se convierten a map[string]any (forma de store.Record) con
// valores canónicos: string, int64, bool o nil. Estos helpers leen valores
// tolerando las variantes que devuelven los distintos backends.

func str(m map[string]any, k string) string {
	if s, ok := m[k].(string); ok {
		return s
	}
	return ""
}

func strPtr(m map[string]any, k string) *string {
	if s, ok := m[k].(string); ok {
		return &s
	}
	return nil
}

func int64Of(m map[string]any, k string) (int64, error) {
	v, ok := m[k]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: field %q missing", ErrInvalidInput, k)
	}
	n, ok := AsInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is %T, want integer", ErrInvalidInput, k, v)
	}
	return n, nil
}

func boolPtr(m map[string]any, k string) *bool {
	if b, ok := m[k].(bool); ok {
		return &b
	}
	return nil
}

// AsInt64 convierte cualquier representación numérica entera a int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return AsInt64(float64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func putOpt(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

// Bool devuelve un puntero a b; útil para los campos opcionales used/revoked.
func Bool(b bool) *bool { return &b }

// String devuelve un puntero a s.
func String(s string) *string { return &s }
