package jwt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims son las claims de un access token. Los números llegan como float64
// cuando vienen de un JWT parseado.
type Claims map[string]any

func (c Claims) str(k string) string {
	s, _ := c[k].(string)
	return s
}

func (c Claims) JTI() string    { return c.str("jti") }
func (c Claims) Issuer() string { return c.str("iss") }
func (c Claims) Me() string     { return c.str("me") }
func (c Claims) Scope() string  { return c.str("scope") }

// Exp devuelve exp en segundos UNIX (0 si falta).
func (c Claims) Exp() int64 { return c.num("exp") }

// Iat devuelve iat en segundos UNIX (0 si falta).
func (c Claims) Iat() int64 { return c.num("iat") }

func (c Claims) num(k string) int64 {
	switch v := c[k].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// reservedClaims los fija Sign; el payload no puede pisarlos.
var reservedClaims = map[string]struct{}{"iss": {}, "iat": {}, "exp": {}, "jti": {}}

// Sign firma {iss, iat, exp, jti, ...payload} con una clave elegida al azar
// del key set y devuelve el JWT compacto.
func Sign(payload map[string]any, issuer string, expiration time.Duration, keys *KeySet) (string, error) {
	tok, _, err := signAt(time.Now(), payload, issuer, expiration, keys)
	return tok, err
}

func signAt(now time.Time, payload map[string]any, issuer string, expiration time.Duration, keys *KeySet) (string, Claims, error) {
	if expiration <= 0 {
		return "", nil, fmt.Errorf("%w: expiration must be positive", ErrSigningFailed)
	}
	key, err := keys.randomKey()
	if err != nil {
		return "", nil, err
	}

	claims := jwtv5.MapClaims{}
	for k, v := range payload {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}
	iat := now.UTC().Unix()
	claims["iss"] = issuer
	claims["iat"] = iat
	claims["exp"] = now.Add(expiration).UTC().Unix()
	claims["jti"] = uuid.NewString()

	method := jwtv5.GetSigningMethod(key.alg)
	if method == nil {
		return "", nil, fmt.Errorf("%w: unsupported alg %s", ErrSigningFailed, key.alg)
	}
	tk := jwtv5.NewWithClaims(method, claims)
	tk.Header["kid"] = key.kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(key.raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return signed, Claims(claims), nil
}

// Issuer liga issuer, TTL y key set para emitir access tokens. Es seguro para
// uso concurrente; RotateKeys puede correr mientras se emiten tokens.
type Issuer struct {
	Iss       string        // "iss"
	AccessTTL time.Duration // TTL por defecto (ej: 1h)

	mu   sync.RWMutex
	keys *KeySet // JWKS privado

	jwks *JWKSCache
	now  func() time.Time
}

func NewIssuer(iss string, keys *KeySet, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	i := &Issuer{
		Iss:       iss,
		AccessTTL: ttl,
		keys:      keys,
		now:       time.Now,
	}
	i.jwks = NewJWKSCache(5*time.Minute, func() (json.RawMessage, error) {
		return i.Keys().PublicJWKS()
	})
	return i
}

// WithClock reemplaza el reloj (tests).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issued es un token recién firmado con las claims que fijó el issuer.
type Issued struct {
	Token  string
	Claims Claims
}

// IssueAccess firma payload con el TTL por defecto.
func (i *Issuer) IssueAccess(payload map[string]any) (*Issued, error) {
	return i.IssueAccessTTL(payload, i.AccessTTL)
}

// IssueAccessTTL firma payload con un TTL explícito.
func (i *Issuer) IssueAccessTTL(payload map[string]any, ttl time.Duration) (*Issued, error) {
	tok, claims, err := signAt(i.now(), payload, i.Iss, ttl, i.Keys())
	if err != nil {
		return nil, err
	}
	return &Issued{Token: tok, Claims: claims}, nil
}

// PublicJWKS devuelve el JWKS público cacheado, listo para publicar.
func (i *Issuer) PublicJWKS() (json.RawMessage, error) {
	return i.jwks.Get()
}

// Keys devuelve el key set vigente.
func (i *Issuer) Keys() *KeySet {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.keys
}

// RotateKeys reemplaza el key set e invalida el JWKS publicado. Los tokens en
// vuelo terminan de firmarse con el key set que leyeron.
func (i *Issuer) RotateKeys(keys *KeySet) {
	i.mu.Lock()
	i.keys = keys
	i.mu.Unlock()
	i.jwks.Invalidate()
}
