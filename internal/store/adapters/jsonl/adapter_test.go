package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store/storetest"
)

func openAt(t *testing.T, root string) store.AdapterConnection {
	conn, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "jsonl", Root: root})
	require.NoError(t, err)
	return conn
}

func TestJSONLContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) store.AdapterConnection {
		return openAt(t, t.TempDir())
	})
}

func TestReduceLastWriteByOrdinal(t *testing.T) {
	ts := "2024-01-01T00:00:00Z" // mismo timestamp: decide la posición
	events := []Event{
		{Seq: 0, ID: "a", CreatedAt: ts, Fields: store.Record{"jti": "a", "exp": int64(1)}},
		{Seq: 1, ID: "b", CreatedAt: ts, Fields: store.Record{"jti": "b", "exp": int64(1)}},
		{Seq: 2, ID: "a", CreatedAt: ts, Fields: store.Record{"jti": "a", "exp": int64(2)}},
		{Seq: 3, ID: "b", CreatedAt: ts, Deleted: true},
	}

	rows := Reduce(events)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows["a"]["exp"])

	rows = Reduce(append(events, Event{Seq: 4, ID: "b", Fields: store.Record{"jti": "b", "exp": int64(9)}}))
	assert.Equal(t, int64(9), rows["b"]["exp"])
}

func TestJSONLAppendsInsteadOfRewriting(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	tbl, err := openAt(t, root).Table(store.AuthCodes)
	require.NoError(t, err)

	_, err = tbl.StoreOne(ctx, store.Record{"code": "abc1234567", "exp": 300})
	require.NoError(t, err)
	_, err = tbl.UpdateMany(ctx, *store.Where("code", store.OpEq, "abc1234567").WithSet(store.Record{"used": true}))
	require.NoError(t, err)
	_, err = tbl.RemoveMany(ctx, store.Where("code", store.OpEq, "abc1234567"))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(root, "auth_codes.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, "abc1234567", l["id"])
		assert.NotEmpty(t, l["created_at"])
	}
	assert.Nil(t, lines[0]["used"])
	assert.Equal(t, true, lines[1]["used"])
	assert.Equal(t, true, lines[2]["deleted"])

	all, err := tbl.RetrieveMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJSONLHistory(t *testing.T) {
	ctx := context.Background()
	tbl, err := openAt(t, t.TempDir()).Table(store.AccessTokens)
	require.NoError(t, err)

	hist, ok := tbl.(store.Historian)
	require.True(t, ok, "jsonl tables expose history")

	_, err = tbl.StoreOne(ctx, store.Record{"jti": "j1", "exp": 100})
	require.NoError(t, err)
	_, err = tbl.StoreOne(ctx, store.Record{"jti": "j2", "exp": 100})
	require.NoError(t, err)
	for _, reason := range []string{"first", "second"} {
		_, err = tbl.UpdateMany(ctx, *store.Where("jti", store.OpEq, "j1").
			WithSet(store.Record{"revoked": true, "revocation_reason": reason}))
		require.NoError(t, err)
	}

	versions, err := hist.History(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Nil(t, versions[0]["revocation_reason"])
	assert.Equal(t, "first", versions[1]["revocation_reason"])
	assert.Equal(t, "second", versions[2]["revocation_reason"])

	none, err := hist.History(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJSONLCorruptLineIsBackendIO(t *testing.T) {
	root := t.TempDir()
	content := strings.Join([]string{
		`{"id":"me1","created_at":"x","me":"me1"}`,
		`{broken`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "profiles.jsonl"), []byte(content), 0o600))

	tbl, err := openAt(t, root).Table(store.Profiles)
	require.NoError(t, err)
	_, err = tbl.RetrieveMany(context.Background(), nil)
	assert.ErrorIs(t, err, repository.ErrBackendIO)
}

func TestJSONLRejectsReservedColumns(t *testing.T) {
	bad := store.Schema{Table: "bad", Key: "id", Columns: []store.Column{{Name: "id", Type: store.TypeString}}}
	_, err := openAt(t, t.TempDir()).Table(bad)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}
