// Package storetest contiene el test de contrato del Storage Port, compartido
// por todos los adapters.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// Opener devuelve una conexión limpia (tablas vacías) para cada subtest.
type Opener func(t *testing.T) store.AdapterConnection

// RunContract ejercita el contrato de Table contra el adapter de open.
func RunContract(t *testing.T, open Opener) {
	ctx := context.Background()

	table := func(t *testing.T, s store.Schema) store.Table {
		conn := open(t)
		tbl, err := conn.Table(s)
		require.NoError(t, err)
		return tbl
	}

	t.Run("StoreOne/RetrieveOne", func(t *testing.T) {
		tbl := table(t, store.AuthCodes)

		out, err := tbl.StoreOne(ctx, store.Record{"code": "abc1234567", "exp": 300})
		require.NoError(t, err)
		assert.Equal(t, store.Record{"code": "abc1234567", "exp": int64(300)}, out)

		got, err := tbl.RetrieveOne(ctx, *store.Where("code", store.OpEq, "abc1234567"))
		require.NoError(t, err)
		assert.Equal(t, int64(300), got["exp"])
		_, hasUsed := got["used"]
		assert.False(t, hasUsed)
	})

	t.Run("StoreOne duplicate key", func(t *testing.T) {
		tbl := table(t, store.AccessTokens)

		_, err := tbl.StoreOne(ctx, store.Record{"jti": "j1", "exp": 10})
		require.NoError(t, err)
		_, err = tbl.StoreOne(ctx, store.Record{"jti": "j1", "exp": 20})
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)

		got, err := tbl.RetrieveOne(ctx, *store.Where("jti", store.OpEq, "j1"))
		require.NoError(t, err)
		assert.Equal(t, int64(10), got["exp"])
	})

	t.Run("RetrieveOne not found or ambiguous", func(t *testing.T) {
		tbl := table(t, store.AccessTokens)

		_, err := tbl.RetrieveOne(ctx, *store.Where("jti", store.OpEq, "missing"))
		assert.ErrorIs(t, err, repository.ErrNotFound)

		seed(t, tbl, store.Record{"jti": "a", "exp": 5}, store.Record{"jti": "b", "exp": 5})
		_, err = tbl.RetrieveOne(ctx, *store.Where("exp", store.OpEq, 5))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("RetrieveMany", func(t *testing.T) {
		tbl := table(t, store.AccessTokens)
		seed(t, tbl,
			store.Record{"jti": "c", "exp": 30},
			store.Record{"jti": "a", "exp": 10},
			store.Record{"jti": "b", "exp": 20, "revoked": true},
		)

		all, err := tbl.RetrieveMany(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, keys(all, "jti"))

		some, err := tbl.RetrieveMany(ctx, store.Where("exp", store.OpGe, 20))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, keys(some, "jti"))

		active, err := tbl.RetrieveMany(ctx, store.Where("revoked", store.OpNe, true))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, keys(active, "jti"))

		either, err := tbl.RetrieveMany(ctx, store.Where("jti", store.OpEq, "a").Or("exp", store.OpGt, 25))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, keys(either, "jti"))

		none, err := tbl.RetrieveMany(ctx, store.Where("exp", store.OpLt, 0))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpdateMany", func(t *testing.T) {
		tbl := table(t, store.AccessTokens)
		seed(t, tbl,
			store.Record{"jti": "a", "exp": 10},
			store.Record{"jti": "b", "exp": 20, "revoked": true, "revocation_reason": "manual"},
		)

		q := store.Where("revoked", store.OpNe, true).
			WithSet(store.Record{"revoked": true, "revocation_reason": "bulk"})
		out, err := tbl.UpdateMany(ctx, *q)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, store.Record{"jti": "a", "exp": int64(10), "revoked": true, "revocation_reason": "bulk"}, out[0])

		b, err := tbl.RetrieveOne(ctx, *store.Where("jti", store.OpEq, "b"))
		require.NoError(t, err)
		assert.Equal(t, "manual", b["revocation_reason"])

		ret := store.Where("jti", store.OpEq, "b").
			WithSet(store.Record{"revocation_reason": "changed"}).
			WithReturning("jti")
		out, err = tbl.UpdateMany(ctx, *ret)
		require.NoError(t, err)
		assert.Equal(t, []store.Record{{"jti": "b"}}, out)

		out, err = tbl.UpdateMany(ctx, *store.Where("jti", store.OpEq, "zzz").WithSet(store.Record{"revoked": true}))
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("UpdateMany conditional single use", func(t *testing.T) {
		tbl := table(t, store.AuthCodes)
		seed(t, tbl, store.Record{"code": "abc1234567", "exp": 300})

		mark := store.Where("code", store.OpEq, "abc1234567").And("used", store.OpNe, true).
			WithSet(store.Record{"used": true})
		out, err := tbl.UpdateMany(ctx, *mark)
		require.NoError(t, err)
		assert.Len(t, out, 1)

		out, err = tbl.UpdateMany(ctx, *mark)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("RemoveMany", func(t *testing.T) {
		tbl := table(t, store.AuthCodes)
		seed(t, tbl,
			store.Record{"code": "code-000001", "exp": 1},
			store.Record{"code": "code-000002", "exp": 500},
		)

		removed, err := tbl.RemoveMany(ctx, store.Where("exp", store.OpLt, 100))
		require.NoError(t, err)
		assert.Equal(t, []string{"code-000001"}, keys(removed, "code"))

		left, err := tbl.RetrieveMany(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"code-000002"}, keys(left, "code"))

		// una clave borrada puede volver a insertarse
		_, err = tbl.StoreOne(ctx, store.Record{"code": "code-000001", "exp": 2})
		require.NoError(t, err)

		removed, err = tbl.RemoveMany(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, removed, 2)

		left, err = tbl.RetrieveMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, left)
	})

	t.Run("invalid input", func(t *testing.T) {
		tbl := table(t, store.Profiles)

		_, err := tbl.StoreOne(ctx, store.Record{"me": "https://a.example/", "shoe_size": 44})
		assert.ErrorIs(t, err, repository.ErrInvalidInput)

		_, err = tbl.RetrieveMany(ctx, store.Where("shoe_size", store.OpEq, 44))
		assert.ErrorIs(t, err, repository.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		tbl := table(t, store.Profiles)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := tbl.StoreOne(cctx, store.Record{"me": "https://a.example/"})
		assert.Error(t, err)
		_, err = tbl.RetrieveMany(cctx, nil)
		assert.Error(t, err)
	})
}

func seed(t *testing.T, tbl store.Table, recs ...store.Record) {
	t.Helper()
	for _, r := range recs {
		_, err := tbl.StoreOne(context.Background(), r)
		require.NoError(t, err)
	}
}

func keys(recs []store.Record, key string) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		s, _ := r[key].(string)
		out = append(out, s)
	}
	return out
}
