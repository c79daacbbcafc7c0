package dal_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/dal"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/memory"
)

type step func(ctx context.Context, t *store.Tables) error

// script es una secuencia fija de operaciones sobre las cinco tablas.
// Devuelve los errores esperados como sentinels para comparar entre backends.
var script = []step{
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.StoreOne(ctx, store.Record{"code": "abc1234567", "exp": 1000, "client_id": "https://app.example/"})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.StoreOne(ctx, store.Record{"code": "abc1234567", "exp": 5})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.StoreOne(ctx, store.Record{"code": "zzz9876543", "exp": 10})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.UpdateMany(ctx, *store.Where("code", store.OpEq, "abc1234567").
			And("used", store.OpNe, true).WithSet(store.Record{"used": true}))
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.RemoveMany(ctx, store.Where("exp", store.OpLt, 100))
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		for _, jti := range []string{"j1", "j2", "j3"} {
			if _, err := t.AccessTokens.StoreOne(ctx, store.Record{"jti": jti, "exp": 2000, "iat": 1000}); err != nil {
				return err
			}
		}
		return nil
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.AccessTokens.UpdateMany(ctx, *store.Where("jti", store.OpEq, "j2").
			WithSet(store.Record{"revoked": true, "revocation_reason": "manual"}))
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.AccessTokens.UpdateMany(ctx, *store.Where("revoked", store.OpNe, true).
			WithSet(store.Record{"revoked": true, "revocation_reason": "bulk"}))
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.RefreshTokens.StoreOne(ctx, store.Record{
			"refresh_token": "rt-1", "exp": 3000, "iat": 1000,
			"client_id": "https://app.example/", "redirect_uri": "https://app.example/cb", "jti": "j1",
		})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Clients.StoreOne(ctx, store.Record{
			"client_id": "https://app.example/", "me": "https://alice.example/",
			"redirect_uri": "https://app.example/cb", "registered_at": 1000,
		})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Profiles.StoreOne(ctx, store.Record{"me": "https://alice.example/", "name": "Alice"})
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Profiles.UpdateMany(ctx, *store.Where("me", store.OpEq, "https://alice.example/").
			WithSet(store.Record{"name": "Alice L.", "photo": "https://alice.example/me.jpg"}))
		return err
	},
	func(ctx context.Context, t *store.Tables) error {
		_, err := t.Codes.RetrieveOne(ctx, *store.Where("code", store.OpEq, "zzz9876543"))
		return err
	},
}

type run struct {
	errs   []error
	tables map[string][]store.Record
}

func execute(t *testing.T, cfg store.AdapterConfig) run {
	ctx := context.Background()
	tables, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tables.Close() })
	require.NoError(t, tables.Migrate(ctx))

	var r run
	for _, s := range script {
		r.errs = append(r.errs, sentinel(s(ctx, tables)))
	}
	r.tables = map[string][]store.Record{}
	for _, s := range store.Schemas() {
		tbl, _ := tables.ByName(s.Table)
		recs, err := tbl.RetrieveMany(ctx, nil)
		require.NoError(t, err)
		r.tables[s.Table] = recs
	}
	return r
}

func sentinel(err error) error {
	for _, s := range []error{repository.ErrNotFound, repository.ErrAlreadyExists, repository.ErrBackendIO, repository.ErrInvalidInput} {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

func TestAdapterEquivalence(t *testing.T) {
	t.Cleanup(func() { memory.Reset("equivalence") })

	configs := map[string]store.AdapterConfig{
		"memory":   {Name: "memory", Namespace: "equivalence"},
		"jsonfile": {Name: "jsonfile", Root: t.TempDir()},
		"jsonl":    {Name: "jsonl", Root: t.TempDir()},
		"sqlite":   {Name: "sqlite", DSN: "file:equivalence?mode=memory&cache=shared"},
	}

	reference := execute(t, configs["memory"])
	assert.Equal(t, repository.ErrAlreadyExists, reference.errs[1])
	assert.Equal(t, repository.ErrNotFound, reference.errs[len(script)-1])
	assert.Len(t, reference.tables["auth_codes"], 1)
	assert.Equal(t, true, reference.tables["auth_codes"][0]["used"])
	assert.Equal(t, "manual", reference.tables["access_tokens"][1]["revocation_reason"])
	assert.Equal(t, "bulk", reference.tables["access_tokens"][0]["revocation_reason"])

	for name, cfg := range configs {
		if name == "memory" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			got := execute(t, cfg)
			assert.Equal(t, reference.errs, got.errs)
			assert.Equal(t, reference.tables, got.tables)
		})
	}
}

// Los valores del where se canonizan al tipo de la columna antes de llegar al
// backend: todos devuelven lo mismo o todos rechazan el filtro.
func TestFilterValuesAreCoercedOnEveryBackend(t *testing.T) {
	t.Cleanup(func() { memory.Reset("coercion") })

	configs := map[string]store.AdapterConfig{
		"memory":   {Name: "memory", Namespace: "coercion"},
		"jsonfile": {Name: "jsonfile", Root: t.TempDir()},
		"jsonl":    {Name: "jsonl", Root: t.TempDir()},
		"sqlite":   {Name: "sqlite", DSN: "file:coercion?mode=memory&cache=shared"},
	}
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tables, err := store.Open(ctx, cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = tables.Close() })
			require.NoError(t, tables.Migrate(ctx))

			_, err = tables.AccessTokens.StoreOne(ctx, store.Record{"jti": "a", "exp": 1, "iat": 1})
			require.NoError(t, err)

			_, err = tables.AccessTokens.RetrieveMany(ctx, store.Where("exp", store.OpLt, 1.5))
			assert.ErrorIs(t, err, repository.ErrInvalidInput)
			_, err = tables.AccessTokens.RetrieveMany(ctx, store.Where("jti", store.OpEq, 1))
			assert.ErrorIs(t, err, repository.ErrInvalidInput)

			// un float entero es un int válido
			got, err := tables.AccessTokens.RetrieveMany(ctx, store.Where("exp", store.OpLt, 2.0))
			require.NoError(t, err)
			assert.Len(t, got, 1)
			got, err = tables.AccessTokens.RetrieveMany(ctx, store.Where("exp", store.OpGt, 1.0))
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}
