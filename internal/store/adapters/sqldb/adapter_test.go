package sqldb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store/storetest"
)

var dbSeq atomic.Int64

// openSQLite abre una base sqlite en memoria, opcionalmente migrada.
func openSQLite(t *testing.T, migrate bool) *Connection {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:credtest%d?mode=memory&cache=shared", dbSeq.Add(1))

	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: "sql", Dialect: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := conn.(*Connection)
	if migrate {
		require.NoError(t, c.Migrate(ctx))
	}
	return c
}

func TestSQLiteContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) store.AdapterConnection {
		return openSQLite(t, true)
	})
}

func TestSQLAdapterRegistered(t *testing.T) {
	a, ok := store.GetAdapter("sql")
	require.True(t, ok)
	assert.Equal(t, "sql", a.Name())
}

func TestSQLConnectRequiresDSN(t *testing.T) {
	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "sql", Dialect: "sqlite"})
	assert.Error(t, err)
}

func TestSQLUnknownDialect(t *testing.T) {
	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "sql", Dialect: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestSQLConnectDoesNotCreateTables(t *testing.T) {
	c := openSQLite(t, false)
	tbl, err := c.Table(store.AuthCodes)
	require.NoError(t, err)

	_, err = tbl.StoreOne(context.Background(), store.Record{"code": "abc1234567", "exp": 1})
	assert.ErrorIs(t, err, repository.ErrBackendIO)

	_, err = tbl.RetrieveMany(context.Background(), nil)
	assert.ErrorIs(t, err, repository.ErrBackendIO)
}

func TestSQLMigrateIsIdempotent(t *testing.T) {
	c := openSQLite(t, true)
	require.NoError(t, c.Migrate(context.Background()))
}

func TestSQLConcurrentInsertsSerializeOnPrimaryKey(t *testing.T) {
	c := openSQLite(t, true)
	tbl, err := c.Table(store.AuthCodes)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tbl.StoreOne(context.Background(), store.Record{"code": "race-code-1", "exp": 1})
			switch {
			case err == nil:
				ok.Add(1)
			case repository.IsAlreadyExists(err):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), dup.Load())
}

func TestBuilderWhere(t *testing.T) {
	q := store.Where("revoked", store.OpNe, true).And("exp", store.OpLt, 10)
	require.NoError(t, q.Validate(store.AccessTokens))
	b := newBuilder(postgresDialect, store.AccessTokens)
	sql := b.where(q)
	assert.Equal(t, " WHERE (revoked <> $1 OR revoked IS NULL) AND exp < $2", sql)
	assert.Equal(t, []any{true, int64(10)}, b.args)

	q = store.Where("revocation_reason", store.OpEq, nil).Or("jti", store.OpEq, "j1")
	require.NoError(t, q.Validate(store.AccessTokens))
	b = newBuilder(sqliteDialect, store.AccessTokens)
	sql = b.where(q)
	assert.Equal(t, " WHERE revocation_reason IS NULL OR jti = ?", sql)
	assert.Equal(t, []any{"j1"}, b.args)

	b = newBuilder(postgresDialect, store.AccessTokens)
	set := b.assignments(store.Record{"revocation_reason": nil, "revoked": true})
	assert.Equal(t, "revoked = $1, revocation_reason = NULL", set)
}
