package repository

import (
	"fmt"
	"time"
)

// AccessToken es el registro de emisión de un access token, identificado por jti.
type AccessToken struct {
	JTI              string  `json:"jti"`
	Exp              int64   `json:"exp"`
	Iat              int64   `json:"iat"`
	Revoked          *bool   `json:"revoked,omitempty"`
	RevocationReason *string `json:"revocation_reason,omitempty"`
	ClientID         string  `json:"client_id,omitempty"`
	Me               string  `json:"me,omitempty"`
	Scope            string  `json:"scope,omitempty"`
}

// IsRevoked reporta si el token fue revocado.
func (t *AccessToken) IsRevoked() bool {
	return t.Revoked != nil && *t.Revoked
}

// IsExpiredAt reporta si exp quedó en el pasado respecto de now (estricto).
func (t *AccessToken) IsExpiredAt(now time.Time) bool {
	return t.Exp-now.Unix() < 0
}

// Validate verifica los campos obligatorios.
func (t *AccessToken) Validate() error {
	if t.JTI == "" {
		return fmt.Errorf("%w: jti is required", ErrInvalidInput)
	}
	if t.Exp <= 0 {
		return fmt.Errorf("%w: exp must be a positive unix timestamp", ErrInvalidInput)
	}
	return nil
}

func (t *AccessToken) ToRecord() map[string]any {
	m := map[string]any{
		"jti": t.JTI,
		"exp": t.Exp,
		"iat": t.Iat,
	}
	if t.Revoked != nil {
		m["revoked"] = *t.Revoked
	}
	if t.RevocationReason != nil {
		m["revocation_reason"] = *t.RevocationReason
	}
	putOpt(m, "client_id", t.ClientID)
	putOpt(m, "me", t.Me)
	putOpt(m, "scope", t.Scope)
	return m
}

func AccessTokenFromRecord(m map[string]any) (*AccessToken, error) {
	exp, err := int64Of(m, "exp")
	if err != nil {
		return nil, err
	}
	iat, _ := AsInt64(m["iat"])
	return &AccessToken{
		JTI:              str(m, "jti"),
		Exp:              exp,
		Iat:              iat,
		Revoked:          boolPtr(m, "revoked"),
		RevocationReason: strPtr(m, "revocation_reason"),
		ClientID:         str(m, "client_id"),
		Me:               str(m, "me"),
		Scope:            str(m, "scope"),
	}, nil
}

// RefreshToken se identifica por el propio string del token.
// Replica los campos de AccessToken más la asociación al client.
type RefreshToken struct {
	Token            string  `json:"refresh_token"`
	Exp              int64   `json:"exp"`
	Iat              int64   `json:"iat"`
	ClientID         string  `json:"client_id"`
	RedirectURI      string  `json:"redirect_uri"`
	Me               string  `json:"me,omitempty"`
	Scope            string  `json:"scope,omitempty"`
	JTI              string  `json:"jti,omitempty"` // access token emitido junto a este refresh
	Revoked          *bool   `json:"revoked,omitempty"`
	RevocationReason *string `json:"revocation_reason,omitempty"`
}

func (t *RefreshToken) IsRevoked() bool {
	return t.Revoked != nil && *t.Revoked
}

func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return t.Exp-now.Unix() < 0
}

func (t *RefreshToken) Validate() error {
	if t.Token == "" {
		return fmt.Errorf("%w: refresh_token is required", ErrInvalidInput)
	}
	if t.ClientID == "" || t.RedirectURI == "" {
		return fmt.Errorf("%w: client_id and redirect_uri are required", ErrInvalidInput)
	}
	if t.Exp <= 0 {
		return fmt.Errorf("%w: exp must be a positive unix timestamp", ErrInvalidInput)
	}
	return nil
}

func (t *RefreshToken) ToRecord() map[string]any {
	m := map[string]any{
		"refresh_token": t.Token,
		"exp":           t.Exp,
		"iat":           t.Iat,
		"client_id":     t.ClientID,
		"redirect_uri":  t.RedirectURI,
	}
	putOpt(m, "me", t.Me)
	putOpt(m, "scope", t.Scope)
	putOpt(m, "jti", t.JTI)
	if t.Revoked != nil {
		m["revoked"] = *t.Revoked
	}
	if t.RevocationReason != nil {
		m["revocation_reason"] = *t.RevocationReason
	}
	return m
}

func RefreshTokenFromRecord(m map[string]any) (*RefreshToken, error) {
	exp, err := int64Of(m, "exp")
	if err != nil {
		return nil, err
	}
	iat, _ := AsInt64(m["iat"])
	return &RefreshToken{
		Token:            str(m, "refresh_token"),
		Exp:              exp,
		Iat:              iat,
		ClientID:         str(m, "client_id"),
		RedirectURI:      str(m, "redirect_uri"),
		Me:               str(m, "me"),
		Scope:            str(m, "scope"),
		JTI:              str(m, "jti"),
		Revoked:          boolPtr(m, "revoked"),
		RevocationReason: strPtr(m, "revocation_reason"),
	}, nil
}
