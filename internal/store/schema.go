package store

import (
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

// ColumnType es el tipo canónico de una columna.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	}
	return "string"
}

// Column describe una columna. Todas salvo la clave son nullable.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describe una tabla: nombre, clave primaria y columnas permitidas.
// Los adapters SQL usan Columns como whitelist de identificadores.
type Schema struct {
	Table   string
	Key     string
	Columns []Column
}

// Column busca una columna por nombre.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames devuelve los nombres en orden de declaración.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// KeyOf extrae la clave primaria de r. Debe ser un string no vacío.
func (s Schema) KeyOf(r Record) (string, error) {
	k, ok := r[s.Key].(string)
	if !ok || k == "" {
		return "", fmt.Errorf("%w: %s requires non-empty %q", repository.ErrInvalidInput, s.Table, s.Key)
	}
	return k, nil
}

// ─── Tablas del dominio ───

var (
	AuthCodes = Schema{
		Table: "auth_codes",
		Key:   "code",
		Columns: []Column{
			{"code", TypeString},
			{"exp", TypeInt},
			{"used", TypeBool},
			{"client_id", TypeString},
			{"redirect_uri", TypeString},
			{"me", TypeString},
			{"scope", TypeString},
			{"code_challenge", TypeString},
			{"code_challenge_method", TypeString},
		},
	}

	AccessTokens = Schema{
		Table: "access_tokens",
		Key:   "jti",
		Columns: []Column{
			{"jti", TypeString},
			{"exp", TypeInt},
			{"iat", TypeInt},
			{"revoked", TypeBool},
			{"revocation_reason", TypeString},
			{"client_id", TypeString},
			{"me", TypeString},
			{"scope", TypeString},
		},
	}

	RefreshTokens = Schema{
		Table: "refresh_tokens",
		Key:   "refresh_token",
		Columns: []Column{
			{"refresh_token", TypeString},
			{"exp", TypeInt},
			{"iat", TypeInt},
			{"client_id", TypeString},
			{"redirect_uri", TypeString},
			{"me", TypeString},
			{"scope", TypeString},
			{"jti", TypeString},
			{"revoked", TypeBool},
			{"revocation_reason", TypeString},
		},
	}

	Clients = Schema{
		Table: "clients",
		Key:   "client_id",
		Columns: []Column{
			{"client_id", TypeString},
			{"me", TypeString},
			{"redirect_uri", TypeString},
			{"registered_at", TypeInt},
		},
	}

	Profiles = Schema{
		Table: "profiles",
		Key:   "me",
		Columns: []Column{
			{"me", TypeString},
			{"name", TypeString},
			{"photo", TypeString},
			{"url", TypeString},
			{"email", TypeString},
		},
	}
)

// Schemas devuelve las cinco tablas del dominio.
func Schemas() []Schema {
	return []Schema{AuthCodes, AccessTokens, RefreshTokens, Clients, Profiles}
}

// SchemaByTable busca un schema por nombre de tabla.
func SchemaByTable(name string) (Schema, bool) {
	for _, s := range Schemas() {
		if s.Table == name {
			return s, true
		}
	}
	return Schema{}, false
}

// ─── Normalización ───

// Normalize convierte rec a valores canónicos según el schema.
// Descarta nil (ausente) y rechaza columnas desconocidas o tipos incompatibles.
func Normalize(s Schema, rec Record) (Record, error) {
	out := make(Record, len(rec))
	for k, v := range rec {
		col, ok := s.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q in %s", repository.ErrInvalidInput, k, s.Table)
		}
		if v == nil {
			continue
		}
		cv, err := coerce(col, v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

// NormalizePatch es Normalize para un patch: conserva los nil (borrar campo).
func NormalizePatch(s Schema, set Record) (Record, error) {
	out := make(Record, len(set))
	for k, v := range set {
		col, ok := s.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q in %s", repository.ErrInvalidInput, k, s.Table)
		}
		if k == s.Key {
			return nil, fmt.Errorf("%w: primary key %q cannot be updated", repository.ErrInvalidInput, k)
		}
		if v == nil {
			out[k] = nil
			continue
		}
		cv, err := coerce(col, v)
		if err != nil {
			return nil, err
		}
		out[k] = cv
	}
	return out, nil
}

func coerce(col Column, v any) (any, error) {
	switch col.Type {
	case TypeInt:
		if n, ok := repository.AsInt64(v); ok {
			return n, nil
		}
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64: // sqlite guarda BOOLEAN como INTEGER
			return b != 0, nil
		}
	case TypeString:
		switch sv := v.(type) {
		case string:
			return sv, nil
		case []byte:
			return string(sv), nil
		case json.Number:
			return sv.String(), nil
		}
	}
	return nil, fmt.Errorf("%w: column %q expects %s, got %T", repository.ErrInvalidInput, col.Name, col.Type, v)
}
