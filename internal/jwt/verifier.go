package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"
)

// RequiredClaims deben estar presentes en todo access token.
var RequiredClaims = []string{"exp", "iat", "iss", "jti", "me", "scope"}

var validMethods = []string{"EdDSA", "RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Verifier valida tokens contra JWKS remotos. Los JWKS se cachean por URL
// (jwk.Cache con refresco en background mientras viva el ctx del constructor).
type Verifier struct {
	cache   *jwk.Cache
	timeout time.Duration
	now     func() time.Time

	// registros en curso, uno por URL; el fetch de una URL lenta no frena a las demás
	group      singleflight.Group
	registered sync.Map
}

// NewVerifier crea un verifier. timeout acota cada fetch/lookup de JWKS.
func NewVerifier(ctx context.Context, httpClient *http.Client, timeout time.Duration) (*Verifier, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(httpClient)))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}
	return &Verifier{
		cache:   cache,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// WithClock reemplaza el reloj (tests).
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify valida firma, iss, exp, claims requeridas y edad máxima (si
// maxTokenAge > 0). Todo rechazo es un *VerificationError con su causa.
func (v *Verifier) Verify(ctx context.Context, token, issuer, jwksURL string, maxTokenAge time.Duration) (Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods(validMethods),
		jwtv5.WithoutClaimsValidation(), // exp/iat/iss se validan abajo
	)
	tok, err := parser.Parse(token, func(t *jwtv5.Token) (any, error) {
		return v.keyFor(ctx, jwksURL, t)
	})
	if err != nil {
		return nil, classify(err)
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok || !tok.Valid {
		return nil, verificationError(ErrSignatureInvalid, "token not valid")
	}
	claims := Claims(mc)

	for _, name := range RequiredClaims {
		if claims[name] == nil {
			return nil, verificationError(ErrMissingClaim, "%s", name)
		}
	}
	if got := claims.Issuer(); got != issuer {
		return nil, verificationError(ErrIssuerMismatch, "got %q want %q", got, issuer)
	}
	now := v.now()
	if IsExpiredAt(claims.Exp(), now) {
		return nil, verificationError(ErrTokenExpired, "exp %d", claims.Exp())
	}
	if maxTokenAge > 0 {
		age := now.Sub(time.Unix(claims.Iat(), 0))
		if age > maxTokenAge {
			return nil, verificationError(ErrTokenTooOld, "age %s exceeds %s", age.Truncate(time.Second), maxTokenAge)
		}
	}
	return claims, nil
}

// keyFor resuelve la clave pública del kid del token en el JWKS remoto.
func (v *Verifier) keyFor(ctx context.Context, jwksURL string, t *jwtv5.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, verificationError(ErrSignatureInvalid, "token header missing kid")
	}
	if err := v.ensureRegistered(ctx, jwksURL); err != nil {
		return nil, err
	}
	set, err := v.cache.Lookup(ctx, jwksURL)
	if err != nil {
		return nil, verificationError(ErrJWKSUnavailable, "lookup %s: %v", jwksURL, err)
	}
	key, found := set.LookupKeyID(kid)
	if !found {
		return nil, verificationError(ErrSignatureInvalid, "key ID %s not found in JWKS", kid)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, verificationError(ErrJWKSUnavailable, "export key %s: %v", kid, err)
	}
	if p, ok := raw.(*ed25519.PublicKey); ok {
		raw = *p
	}
	return raw, nil
}

// ensureRegistered registra la URL en el cache una sola vez. Los llamadores
// concurrentes de la misma URL esperan un único registro y cada uno se
// libera con su propio ctx. Si el registro falla se reintenta en la
// próxima verificación.
func (v *Verifier) ensureRegistered(ctx context.Context, jwksURL string) error {
	if _, ok := v.registered.Load(jwksURL); ok {
		return nil
	}
	ch := v.group.DoChan(jwksURL, func() (any, error) {
		// no hereda la cancelación del primer llamador: el resultado es compartido
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()
		if err := v.cache.Register(rctx, jwksURL); err != nil {
			// puede estar registrada por un intento previo cuyo fetch falló
			if _, lerr := v.cache.Lookup(rctx, jwksURL); lerr != nil {
				return nil, err
			}
		}
		v.registered.Store(jwksURL, struct{}{})
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return verificationError(ErrJWKSUnavailable, "register %s: %v", jwksURL, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return verificationError(ErrJWKSUnavailable, "register %s: %v", jwksURL, res.Err)
		}
		return nil
	}
}

// classify traduce errores de golang-jwt a VerificationError.
func classify(err error) error {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return verificationError(ErrJWKSUnavailable, "%v", err)
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return verificationError(ErrMalformedToken, "%v", err)
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid), errors.Is(err, jwtv5.ErrTokenUnverifiable):
		return verificationError(ErrSignatureInvalid, "%v", err)
	}
	return verificationError(ErrSignatureInvalid, "%v", err)
}
