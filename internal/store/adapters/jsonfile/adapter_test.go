package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store/storetest"
)

func openAt(t *testing.T, root string) store.AdapterConnection {
	conn, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "jsonfile", Root: root})
	require.NoError(t, err)
	return conn
}

func TestJSONFileContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) store.AdapterConnection {
		return openAt(t, t.TempDir())
	})
}

func TestJSONFileLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tbl, err := openAt(t, root).Table(store.AccessTokens)
	require.NoError(t, err)

	_, err = tbl.StoreOne(ctx, store.Record{"jti": "j1", "exp": 100, "iat": 40})
	require.NoError(t, err)
	_, err = tbl.UpdateMany(ctx, *store.Where("jti", store.OpEq, "j1").WithSet(store.Record{"revoked": true}))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "access_tokens.json"))
	require.NoError(t, err)

	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Contains(t, onDisk, "j1")
	assert.Equal(t, true, onDisk["j1"]["revoked"])
	assert.EqualValues(t, 100, onDisk["j1"]["exp"])

	// otra conexión sobre el mismo root ve el mismo estado
	again, err := openAt(t, root).Table(store.AccessTokens)
	require.NoError(t, err)
	got, err := again.RetrieveOne(ctx, *store.Where("jti", store.OpEq, "j1"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got["exp"])
}

func TestJSONFileMissingFileIsEmpty(t *testing.T) {
	tbl, err := openAt(t, t.TempDir()).Table(store.Clients)
	require.NoError(t, err)

	all, err := tbl.RetrieveMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJSONFileCorruptFileIsBackendIO(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clients.json"), []byte("{not json"), 0o600))

	tbl, err := openAt(t, root).Table(store.Clients)
	require.NoError(t, err)

	_, err = tbl.RetrieveMany(context.Background(), nil)
	assert.ErrorIs(t, err, repository.ErrBackendIO)
}

func TestJSONFileRootIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "jsonfile", Root: f})
	assert.ErrorIs(t, err, repository.ErrBackendIO)
}
