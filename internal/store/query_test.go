package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

func TestConditionEval(t *testing.T) {
	rec := Record{"jti": "a", "exp": int64(100), "revoked": true}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq string", Condition{"jti", OpEq, "a"}, true},
		{"ne string", Condition{"jti", OpNe, "a"}, false},
		{"int vs float", Condition{"exp", OpEq, float64(100)}, true},
		{"int vs int", Condition{"exp", OpLt, 101}, true},
		{"le boundary", Condition{"exp", OpLe, int64(100)}, true},
		{"gt boundary", Condition{"exp", OpGt, int64(100)}, false},
		{"ge", Condition{"exp", OpGe, int64(99)}, true},
		{"bool eq", Condition{"revoked", OpEq, true}, true},
		{"bool ne", Condition{"revoked", OpNe, true}, false},
		{"absent eq nil", Condition{"revocation_reason", OpEq, nil}, true},
		{"absent ne value", Condition{"used", OpNe, true}, true},
		{"absent eq value", Condition{"used", OpEq, true}, false},
		{"absent ordering", Condition{"iat", OpLt, int64(5)}, false},
		{"present eq nil", Condition{"jti", OpEq, nil}, false},
		{"present ne nil", Condition{"jti", OpNe, nil}, true},
		{"incomparable eq", Condition{"jti", OpEq, int64(1)}, false},
		{"incomparable ne", Condition{"jti", OpNe, int64(1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cond.Eval(rec))
		})
	}
}

func TestQueryMatchesCombinators(t *testing.T) {
	rec := Record{"code": "abc1234567", "exp": int64(10)}

	assert.True(t, (*Query)(nil).Matches(rec))
	assert.True(t, (&Query{}).Matches(rec))

	and := Where("code", OpEq, "abc1234567").And("exp", OpGt, 50)
	assert.False(t, and.Matches(rec))

	or := Where("code", OpEq, "other").Or("exp", OpLt, 50)
	assert.True(t, or.Matches(rec))
}

func TestQueryValidate(t *testing.T) {
	require.NoError(t, Where("jti", OpEq, "x").Validate(AccessTokens))

	err := Where("nope", OpEq, "x").Validate(AccessTokens)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	err = (&Query{Where: []Condition{{"jti", Op("~="), "x"}}}).Validate(AccessTokens)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	mixed := Where("jti", OpEq, "a").Or("jti", OpEq, "b").And("exp", OpGt, 1)
	assert.ErrorIs(t, mixed.Validate(AccessTokens), repository.ErrInvalidInput)

	pk := Where("jti", OpEq, "a").WithSet(Record{"jti": "b"})
	assert.ErrorIs(t, pk.Validate(AccessTokens), repository.ErrInvalidInput)

	ret := Where("jti", OpEq, "a").WithReturning("bogus")
	assert.ErrorIs(t, ret.Validate(AccessTokens), repository.ErrInvalidInput)
}

func TestQueryValidateCoercesValues(t *testing.T) {
	q := Where("exp", OpLt, 2.0).And("revoked", OpNe, true).And("revocation_reason", OpEq, nil)
	orig := q.Where
	require.NoError(t, q.Validate(AccessTokens))
	assert.Equal(t, int64(2), q.Where[0].Value)
	assert.Nil(t, q.Where[2].Value)
	assert.Equal(t, 2.0, orig[0].Value, "el slice original no se toca")

	for name, bad := range map[string]*Query{
		"fraction for int": Where("exp", OpLt, 1.5),
		"int for string":   Where("jti", OpEq, 7),
		"string for bool":  Where("revoked", OpEq, "yes"),
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, bad.Validate(AccessTokens), repository.ErrInvalidInput)
		})
	}
}

func TestQueryProject(t *testing.T) {
	rec := Record{"jti": "a", "exp": int64(1), "revoked": true}

	full := (*Query)(nil).Project(rec)
	assert.Equal(t, rec, full)
	full["exp"] = int64(2)
	assert.Equal(t, int64(1), rec["exp"], "Project must copy")

	q := Where("jti", OpEq, "a").WithReturning("jti", "revocation_reason")
	assert.Equal(t, Record{"jti": "a"}, q.Project(rec))
}
