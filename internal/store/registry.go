// Package store define el Storage Port (Table + query algebra) y el registry
// de adaptadores que lo implementan.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Adapter representa un backend de almacenamiento capaz de abrir tablas.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "memory", "jsonfile", "jsonl", "sql").
	Name() string

	// Connect establece conexión con el almacenamiento.
	// Nunca crea esquema: para SQL eso es responsabilidad de Migrate.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa.
type AdapterConnection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos (pool SQL, etc).
	Close() error

	// Table retorna la tabla descripta por schema.
	Table(schema Schema) (Table, error)
}

// Migrator es la capacidad opcional de crear/actualizar el esquema físico.
// Solo la implementan adapters con esquema (sql).
type Migrator interface {
	Migrate(ctx context.Context) error
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "memory", "jsonfile", "jsonl", "sql"
	Name string

	// Dialect para el adapter sql: "postgres" o "sqlite"
	Dialect string

	// DSN connection string (sql)
	DSN string

	// Root directorio de datos (jsonfile, jsonl)
	Root string

	// Namespace aísla tablas del adapter memory dentro del proceso
	Namespace string

	// Pool settings (sql)
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Observer recibe la duración de cada operación (opcional)
	Observer OpObserver
}

// OpObserver recibe la duración de cada operación de tabla.
type OpObserver func(backend, table, op string, d time.Duration)

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión usando el adapter especificado en la config.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (have %v)", cfg.Name, ListAdapters())
	}
	return a.Connect(ctx, cfg)
}
