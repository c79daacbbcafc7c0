package sqldb

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registra el driver "pgx" de database/sql
	"github.com/pressly/goose/v3/database"
	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	pgmigrations "github.com/dropDatabas3/hellojohn-indieauth/migrations/postgres"
	sqlitemigrations "github.com/dropDatabas3/hellojohn-indieauth/migrations/sqlite"
)

// dialect encapsula lo que cambia entre motores: driver, placeholders,
// traducción de errores y migraciones.
type dialect struct {
	name          string
	driver        string
	gooseDialect  database.Dialect
	migrations    fs.FS
	migrationsDir string
	placeholder   func(n int) string
	uniqueErr     func(error) bool
	missingTable  func(error) bool
	singleConn    bool // sqlite: una conexión para que :memory: sea una sola base
}

func dialectFor(name string) (*dialect, error) {
	switch strings.ToLower(name) {
	case "", "postgres", "pg", "postgresql":
		return postgresDialect, nil
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	}
	return nil, fmt.Errorf("sql: unsupported dialect %q", name)
}

var postgresDialect = &dialect{
	name:          "postgres",
	driver:        "pgx",
	gooseDialect:  database.DialectPostgres,
	migrations:    pgmigrations.CredentialsFS,
	migrationsDir: pgmigrations.CredentialsDir,
	placeholder:   func(n int) string { return fmt.Sprintf("$%d", n) },
	uniqueErr: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
	missingTable: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "42P01"
	},
}

var sqliteDialect = &dialect{
	name:          "sqlite",
	driver:        "sqlite",
	gooseDialect:  database.DialectSQLite3,
	migrations:    sqlitemigrations.CredentialsFS,
	migrationsDir: sqlitemigrations.CredentialsDir,
	placeholder:   func(int) string { return "?" },
	uniqueErr: func(err error) bool {
		var sqliteErr *sqlite3.Error
		if errors.As(err, &sqliteErr) {
			code := sqliteErr.Code()
			return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
		}
		return false
	},
	missingTable: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "no such table")
	},
	singleConn: true,
}
