package jwt

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
)

var (
	ErrVerificationFailed = repository.ErrVerificationFailed
	ErrSigningFailed      = repository.ErrSigningFailed
)

// Causas de VerificationError.
var (
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrMissingClaim     = errors.New("missing required claim")
	ErrTokenTooOld      = errors.New("token older than max age")
	ErrJWKSUnavailable  = errors.New("jwks unavailable")
	ErrMalformedToken   = errors.New("malformed token")
	ErrTokenRevoked     = errors.New("token revoked")
)

// VerificationError es el rechazo de un token. Siempre matchea
// ErrVerificationFailed y además la causa concreta:
//
//	errors.Is(err, jwt.ErrVerificationFailed) // true
//	errors.Is(err, jwt.ErrTokenExpired)       // según la causa
type VerificationError struct {
	Cause  error
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("jwt verification failed: %v", e.Cause)
	}
	return fmt.Sprintf("jwt verification failed: %v: %s", e.Cause, e.Detail)
}

func (e *VerificationError) Unwrap() []error {
	return []error{ErrVerificationFailed, e.Cause}
}

func verificationError(cause error, format string, args ...any) *VerificationError {
	return &VerificationError{Cause: cause, Detail: fmt.Sprintf(format, args...)}
}

// CauseOf devuelve la causa de un VerificationError, o nil si err no lo es.
func CauseOf(err error) error {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Cause
	}
	return nil
}
