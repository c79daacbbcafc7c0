// Package sqldb implementa el Storage Port sobre database/sql.
//
// Dialectos: postgres (pgx stdlib) y sqlite (modernc.org/sqlite).
// Las sentencias son parametrizadas y usan RETURNING; los nombres de columna
// salen del Schema (whitelist), nunca del input. La unicidad la garantiza la
// primary key: una colisión se traduce a ErrAlreadyExists.
//
// Connect nunca crea tablas. El esquema se aplica con Migrate (goose); operar
// sobre una tabla inexistente devuelve ErrBackendIO.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	store "github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const adapterName = "sql"

func init() {
	store.RegisterAdapter(&sqlAdapter{})
}

type sqlAdapter struct{}

func (a *sqlAdapter) Name() string { return adapterName }

func (a *sqlAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sql: DSN is required")
	}
	d, err := dialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: sql: open %s: %w", repository.ErrBackendIO, d.name, err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: sql: ping %s: %w", repository.ErrBackendIO, d.name, err)
	}

	return &Connection{db: db, dialect: d, observer: cfg.Observer}, nil
}

// Connection es una conexión activa. El pool de database/sql es seguro para
// uso concurrente y se comparte entre todas las tablas.
type Connection struct {
	db       *sql.DB
	dialect  *dialect
	observer store.OpObserver
}

var (
	_ store.AdapterConnection = (*Connection)(nil)
	_ store.Migrator          = (*Connection)(nil)
)

func (c *Connection) Name() string { return adapterName }

func (c *Connection) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: sql: %w", repository.ErrBackendIO, err)
	}
	return nil
}

func (c *Connection) Close() error { return c.db.Close() }

// DB expone el pool subyacente.
func (c *Connection) DB() *sql.DB { return c.db }

func (c *Connection) Table(s store.Schema) (store.Table, error) {
	if len(s.Columns) == 0 || s.Key == "" {
		return nil, fmt.Errorf("%w: sql: schema %q without columns or key", repository.ErrInvalidInput, s.Table)
	}
	t := &table{db: c.db, d: c.dialect, schema: s}
	return store.Instrument(adapterName+"/"+c.dialect.name, s, t, c.observer), nil
}

// Migrate aplica las migraciones embebidas del dialecto.
func (c *Connection) Migrate(ctx context.Context) error {
	migrationFS, err := fs.Sub(c.dialect.migrations, c.dialect.migrationsDir)
	if err != nil {
		return fmt.Errorf("sql: migrations sub filesystem: %w", err)
	}
	provider, err := goose.NewProvider(c.dialect.gooseDialect, c.db, migrationFS)
	if err != nil {
		return fmt.Errorf("sql: goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%w: sql: apply migrations: %w", repository.ErrBackendIO, err)
	}
	return nil
}
