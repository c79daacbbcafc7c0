package repository

import (
	"fmt"
	"time"

	tokens "github.com/dropDatabas3/hellojohn-indieauth/internal/security/token"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/validation"
)

const (
	CodeMinLength = 10
	CodeMaxLength = 128

	// PKCE (RFC 7636)
	PKCEMethodS256        = "S256"
	PKCEMethodPlain       = "plain"
	CodeVerifierMinLength = 43
	CodeVerifierMaxLength = 128
)

// CodeStatus es el estado lógico de un authorization code.
// EXPIRED se calcula al leer; nunca se persiste.
type CodeStatus string

const (
	CodeIssued  CodeStatus = "issued"
	CodeUsed    CodeStatus = "used"
	CodeExpired CodeStatus = "expired"
)

// AuthorizationCode es un secreto de un solo uso canjeable por un token.
type AuthorizationCode struct {
	Code                string `json:"code"`
	Exp                 int64  `json:"exp"`            // UNIX seconds
	Used                *bool  `json:"used,omitempty"` // ausente hasta el canje
	ClientID            string `json:"client_id,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`
	Me                  string `json:"me,omitempty"`
	Scope               string `json:"scope,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

// IsUsed reporta si el code ya fue canjeado.
func (c *AuthorizationCode) IsUsed() bool {
	return c.Used != nil && *c.Used
}

// Status calcula el estado del code en el instante now.
// Un code usado es USED aunque además haya expirado.
func (c *AuthorizationCode) Status(now time.Time) CodeStatus {
	if c.IsUsed() {
		return CodeUsed
	}
	if c.Exp-now.Unix() < 0 {
		return CodeExpired
	}
	return CodeIssued
}

// Validate verifica longitud del code y presencia de exp.
func (c *AuthorizationCode) Validate() error {
	if n := len(c.Code); n < CodeMinLength || n > CodeMaxLength {
		return fmt.Errorf("%w: code length %d outside [%d,%d]", ErrInvalidInput, n, CodeMinLength, CodeMaxLength)
	}
	if c.Exp <= 0 {
		return fmt.Errorf("%w: exp must be a positive unix timestamp", ErrInvalidInput)
	}
	if !validation.ValidScope(c.Scope) {
		return fmt.Errorf("%w: invalid scope %q", ErrInvalidInput, c.Scope)
	}
	switch c.CodeChallengeMethod {
	case "", PKCEMethodS256, PKCEMethodPlain:
	default:
		return fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidInput, c.CodeChallengeMethod)
	}
	if c.CodeChallengeMethod != "" && c.CodeChallenge == "" {
		return fmt.Errorf("%w: code_challenge_method without code_challenge", ErrInvalidInput)
	}
	return nil
}

// VerifyCodeVerifier compara verifier contra el code_challenge del code.
// Sin challenge no hay nada que verificar. Método vacío equivale a S256.
func (c *AuthorizationCode) VerifyCodeVerifier(verifier string) error {
	if c.CodeChallenge == "" {
		return nil
	}
	if n := len(verifier); n < CodeVerifierMinLength || n > CodeVerifierMaxLength {
		return fmt.Errorf("%w: code_verifier length %d", ErrVerifierMismatch, n)
	}
	for _, ch := range verifier {
		ok := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~'
		if !ok {
			return fmt.Errorf("%w: code_verifier has invalid characters", ErrVerifierMismatch)
		}
	}
	computed := verifier
	if c.CodeChallengeMethod != PKCEMethodPlain {
		computed = tokens.S256Challenge(verifier)
	}
	if !tokens.Equal(computed, c.CodeChallenge) {
		return ErrVerifierMismatch
	}
	return nil
}

// ToRecord convierte el code a su forma persistible.
func (c *AuthorizationCode) ToRecord() map[string]any {
	m := map[string]any{
		"code": c.Code,
		"exp":  c.Exp,
	}
	if c.Used != nil {
		m["used"] = *c.Used
	}
	putOpt(m, "client_id", c.ClientID)
	putOpt(m, "redirect_uri", c.RedirectURI)
	putOpt(m, "me", c.Me)
	putOpt(m, "scope", c.Scope)
	putOpt(m, "code_challenge", c.CodeChallenge)
	putOpt(m, "code_challenge_method", c.CodeChallengeMethod)
	return m
}

// AuthorizationCodeFromRecord reconstruye un code desde un registro del store.
func AuthorizationCodeFromRecord(m map[string]any) (*AuthorizationCode, error) {
	exp, err := int64Of(m, "exp")
	if err != nil {
		return nil, err
	}
	return &AuthorizationCode{
		Code:                str(m, "code"),
		Exp:                 exp,
		Used:                boolPtr(m, "used"),
		ClientID:            str(m, "client_id"),
		RedirectURI:         str(m, "redirect_uri"),
		Me:                  str(m, "me"),
		Scope:               str(m, "scope"),
		CodeChallenge:       str(m, "code_challenge"),
		CodeChallengeMethod: str(m, "code_challenge_method"),
	}, nil
}
