package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Tables agrupa las cinco tablas del dominio abiertas sobre una misma conexión.
type Tables struct {
	Codes         Table
	AccessTokens  Table
	RefreshTokens Table
	Clients       Table
	Profiles      Table

	conn AdapterConnection
}

// Open abre el adapter configurado y resuelve todas las tablas.
// Acepta alias del driver ("pg", "postgresql" → sql/postgres; "fs" → jsonfile).
func Open(ctx context.Context, cfg AdapterConfig) (*Tables, error) {
	if cfg.Name == "" {
		return nil, errNoDriver
	}
	cfg = normalizeDriver(cfg)

	conn, err := OpenAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	t, err := OpenTables(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

// OpenTables resuelve las tablas del dominio sobre una conexión existente.
func OpenTables(conn AdapterConnection) (*Tables, error) {
	t := &Tables{conn: conn}
	dst := []*Table{&t.Codes, &t.AccessTokens, &t.RefreshTokens, &t.Clients, &t.Profiles}
	for i, s := range Schemas() {
		tbl, err := conn.Table(s)
		if err != nil {
			return nil, fmt.Errorf("store: open table %s: %w", s.Table, err)
		}
		*dst[i] = tbl
	}
	return t, nil
}

// ByName devuelve la tabla de dominio con ese nombre físico.
func (t *Tables) ByName(name string) (Table, bool) {
	switch name {
	case AuthCodes.Table:
		return t.Codes, true
	case AccessTokens.Table:
		return t.AccessTokens, true
	case RefreshTokens.Table:
		return t.RefreshTokens, true
	case Clients.Table:
		return t.Clients, true
	case Profiles.Table:
		return t.Profiles, true
	}
	return nil, false
}

// Conn expone la conexión subyacente (Ping, Migrate).
func (t *Tables) Conn() AdapterConnection { return t.conn }

// Migrate ejecuta migraciones si el adapter las soporta; no-op si no.
func (t *Tables) Migrate(ctx context.Context) error {
	if m, ok := t.conn.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

// Close cierra la conexión.
func (t *Tables) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

var errNoDriver = errors.New("store: driver is required")

func normalizeDriver(cfg AdapterConfig) AdapterConfig {
	switch strings.ToLower(cfg.Name) {
	case "postgres", "pg", "postgresql":
		cfg.Name, cfg.Dialect = "sql", "postgres"
	case "sqlite", "sqlite3":
		cfg.Name, cfg.Dialect = "sql", "sqlite"
	case "fs", "json":
		cfg.Name = "jsonfile"
	case "mem":
		cfg.Name = "memory"
	default:
		cfg.Name = strings.ToLower(cfg.Name)
	}
	return cfg
}
