package jwt

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// SafeDecode devuelve las claims SIN verificar la firma.
// Solo para mostrar o loguear; nunca para decidir autorización.
func SafeDecode(token string) (Claims, error) {
	mc := jwtv5.MapClaims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return Claims(mc), nil
}

// IsExpired reporta si exp (segundos UNIX) quedó en el pasado: exp - now < 0.
// exp == now todavía no expiró.
func IsExpired(exp int64) bool {
	return IsExpiredAt(exp, time.Now())
}

// IsExpiredAt es IsExpired contra un instante dado.
func IsExpiredAt(exp int64, now time.Time) bool {
	return exp-now.Unix() < 0
}
