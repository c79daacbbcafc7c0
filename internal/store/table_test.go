package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

func TestRowsInsertIsCopyOnWrite(t *testing.T) {
	empty := Rows{}
	next, out, err := empty.Insert(AuthCodes, Record{"code": "abc1234567", "exp": 300})
	require.NoError(t, err)

	assert.Len(t, empty, 0)
	assert.Len(t, next, 1)
	assert.Equal(t, Record{"code": "abc1234567", "exp": int64(300)}, out)

	_, _, err = next.Insert(AuthCodes, Record{"code": "abc1234567", "exp": 1})
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestRowsInsertRejectsBadInput(t *testing.T) {
	_, _, err := Rows{}.Insert(AuthCodes, Record{"exp": 1})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, _, err = Rows{}.Insert(AuthCodes, Record{"code": "abc1234567", "color": "red"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, _, err = Rows{}.Insert(AuthCodes, Record{"code": "abc1234567", "exp": "soon"})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestRowsSelectOne(t *testing.T) {
	rows := Rows{
		"a": {"jti": "a", "exp": int64(1)},
		"b": {"jti": "b", "exp": int64(1)},
	}

	rec, err := rows.SelectOne(*Where("jti", OpEq, "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", rec["jti"])

	_, err = rows.SelectOne(*Where("jti", OpEq, "zzz"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// más de un match se trata igual que ninguno
	_, err = rows.SelectOne(*Where("exp", OpEq, 1))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRowsUpdateAndRemove(t *testing.T) {
	rows := Rows{
		"a": {"jti": "a", "exp": int64(1)},
		"b": {"jti": "b", "exp": int64(2), "revoked": true, "revocation_reason": "manual"},
	}

	q := Where("revoked", OpNe, true).WithSet(Record{"revoked": true, "revocation_reason": "bulk"})
	next, out, err := rows.Update(AccessTokens, *q)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "bulk", next["a"]["revocation_reason"])
	assert.Equal(t, "manual", next["b"]["revocation_reason"])
	assert.Nil(t, rows["a"]["revoked"], "receiver must not change")

	cleared, _, err := next.Update(AccessTokens, *Where("jti", OpEq, "b").WithSet(Record{"revocation_reason": nil}))
	require.NoError(t, err)
	_, has := cleared["b"]["revocation_reason"]
	assert.False(t, has)

	left, removed := next.Remove(Where("exp", OpLt, 2))
	require.Len(t, removed, 1)
	assert.Equal(t, "a", removed[0]["jti"])
	assert.Len(t, left, 1)

	none, all := next.Remove(nil)
	assert.Len(t, none, 0)
	assert.Len(t, all, 2)
	assert.Equal(t, "a", all[0]["jti"], "sorted by key")
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(Clients, Record{
		"client_id":     "https://app.example/",
		"registered_at": float64(1700000000),
		"me":            nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Record{"client_id": "https://app.example/", "registered_at": int64(1700000000)}, rec)

	rec, err = Normalize(AuthCodes, Record{"code": []byte("abc1234567"), "used": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "abc1234567", rec["code"])
	assert.Equal(t, true, rec["used"])

	_, err = Normalize(AuthCodes, Record{"exp": 1.5})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestSchemaByTable(t *testing.T) {
	s, ok := SchemaByTable("refresh_tokens")
	require.True(t, ok)
	assert.Equal(t, "refresh_token", s.Key)

	_, ok = SchemaByTable("users")
	assert.False(t, ok)
	assert.Len(t, Schemas(), 5)
}
