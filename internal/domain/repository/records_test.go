package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCodeStatus(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := AuthorizationCode{Code: "abc1234567", Exp: now.Unix()}

	assert.Equal(t, CodeIssued, c.Status(now), "exp == now todavía es válido")
	assert.Equal(t, CodeExpired, c.Status(now.Add(time.Second)))

	c.Used = Bool(true)
	assert.Equal(t, CodeUsed, c.Status(now.Add(time.Hour)), "usado gana sobre expirado")
}

func TestAuthorizationCodeRecord(t *testing.T) {
	c := AuthorizationCode{Code: "abc1234567", Exp: 42, ClientID: "https://app.example/"}
	rec := c.ToRecord()

	assert.Equal(t, int64(42), rec["exp"])
	assert.NotContains(t, rec, "used")
	assert.NotContains(t, rec, "scope")

	// los backends JSON devuelven números como float64 o json.Number
	rec["exp"] = float64(42)
	got, err := AuthorizationCodeFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, c, *got)

	rec["exp"] = json.Number("42")
	_, err = AuthorizationCodeFromRecord(rec)
	assert.NoError(t, err)

	rec["exp"] = 4.5
	_, err = AuthorizationCodeFromRecord(rec)
	assert.ErrorIs(t, err, ErrInvalidInput)

	delete(rec, "exp")
	_, err = AuthorizationCodeFromRecord(rec)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyCodeVerifier(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	s256 := AuthorizationCode{CodeChallenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallengeMethod: PKCEMethodS256}
	assert.NoError(t, s256.VerifyCodeVerifier(verifier))
	assert.ErrorIs(t, s256.VerifyCodeVerifier(verifier[:42]), ErrVerifierMismatch)
	assert.ErrorIs(t, s256.VerifyCodeVerifier(verifier[:42]+"!"), ErrVerifierMismatch)

	// método vacío se trata como S256
	s256.CodeChallengeMethod = ""
	assert.NoError(t, s256.VerifyCodeVerifier(verifier))

	plain := AuthorizationCode{CodeChallenge: verifier, CodeChallengeMethod: PKCEMethodPlain}
	assert.NoError(t, plain.VerifyCodeVerifier(verifier))
	assert.ErrorIs(t, plain.VerifyCodeVerifier(verifier[1:]+"a"), ErrVerifierMismatch)

	none := AuthorizationCode{}
	assert.NoError(t, none.VerifyCodeVerifier(""))
}

func TestAccessTokenRecord(t *testing.T) {
	tok := AccessToken{JTI: "j1", Exp: 10, Iat: 5, Me: "https://alice.example/"}
	rec := tok.ToRecord()
	assert.NotContains(t, rec, "revoked")
	assert.NotContains(t, rec, "revocation_reason")

	rec["revoked"] = true
	rec["revocation_reason"] = "compromised"
	got, err := AccessTokenFromRecord(rec)
	require.NoError(t, err)
	assert.True(t, got.IsRevoked())
	require.NotNil(t, got.RevocationReason)
	assert.Equal(t, "compromised", *got.RevocationReason)

	assert.False(t, got.IsExpiredAt(time.Unix(10, 0)))
	assert.True(t, got.IsExpiredAt(time.Unix(11, 0)))

	assert.ErrorIs(t, (&AccessToken{Exp: 1}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&AccessToken{JTI: "j"}).Validate(), ErrInvalidInput)
}

func TestCanonicalURL(t *testing.T) {
	cases := map[string]string{
		"https://Alice.Example":        "https://alice.example/",
		"alice.example":                "https://alice.example/",
		" HTTPS://alice.example/x#frag": "https://alice.example/x",
		"http://alice.example/p/":      "http://alice.example/p/",
	}
	for in, want := range cases {
		got, err := CanonicalURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "   ", "https://"} {
		_, err := CanonicalURL(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestClientApplicationValidate(t *testing.T) {
	ok := ClientApplication{ClientID: "https://app.example/", RedirectURI: "https://app.example/cb"}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.RedirectURI = "/cb"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = ok
	bad.Me = "alice"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}
