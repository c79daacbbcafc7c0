package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/util/atomicwrite"
)

// KeySet es el JWKS privado del issuer. Puede tener varias claves de firma
// activas; cada token se firma con una elegida al azar (RandomKID).
type KeySet struct {
	set jwk.Set
}

// signingKey es una clave privada exportada lista para golang-jwt.
type signingKey struct {
	kid string
	alg string
	raw any
}

// ParseKeySet carga un JWKS JSON con claves privadas.
func ParseKeySet(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("jwks: parse: %w", err)
	}
	ks := &KeySet{set: set}
	if len(ks.signingKeys()) == 0 {
		return nil, fmt.Errorf("%w: jwks has no private signing key with kid", ErrSigningFailed)
	}
	return ks, nil
}

// LoadKeySet lee el JWKS privado desde path.
func LoadKeySet(path string) (*KeySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwks: read %s: %w", path, err)
	}
	return ParseKeySet(data)
}

// GenerateKeySet crea n claves Ed25519 con kid aleatorio.
func GenerateKeySet(n int) (*KeySet, error) {
	if n < 1 {
		n = 1
	}
	set := jwk.NewSet()
	for i := 0; i < n; i++ {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwks: generate ed25519: %w", err)
		}
		key, err := jwk.Import(priv)
		if err != nil {
			return nil, fmt.Errorf("jwks: import key: %w", err)
		}
		if err := key.Set(jwk.KeyIDKey, uuid.NewString()); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.AlgorithmKey, "EdDSA"); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("jwks: add key: %w", err)
		}
	}
	return &KeySet{set: set}, nil
}

// Len devuelve la cantidad de claves del set.
func (ks *KeySet) Len() int { return ks.set.Len() }

// KIDs devuelve los kid de las claves de firma.
func (ks *KeySet) KIDs() []string {
	keys := ks.signingKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.kid
	}
	return out
}

// MarshalJSON serializa el JWKS privado (para persistirlo).
func (ks *KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ks.set)
}

// Save persiste el JWKS privado con permisos 0600.
func (ks *KeySet) Save(path string) error {
	data, err := json.MarshalIndent(ks.set, "", "  ")
	if err != nil {
		return fmt.Errorf("jwks: marshal: %w", err)
	}
	return atomicwrite.AtomicWriteFile(path, data, 0o600)
}

// PublicJWKS devuelve el JWKS público (sin material privado) en JSON.
func (ks *KeySet) PublicJWKS() ([]byte, error) {
	pub, err := jwk.PublicSetOf(ks.set)
	if err != nil {
		return nil, fmt.Errorf("jwks: public set: %w", err)
	}
	return json.Marshal(pub)
}

// RandomKID elige uniformemente una clave de firma.
func (ks *KeySet) RandomKID() (string, error) {
	k, err := ks.randomKey()
	if err != nil {
		return "", err
	}
	return k.kid, nil
}

func (ks *KeySet) randomKey() (signingKey, error) {
	keys := ks.signingKeys()
	if len(keys) == 0 {
		return signingKey{}, fmt.Errorf("%w: no usable signing key", ErrSigningFailed)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(keys))))
	if err != nil {
		return signingKey{}, fmt.Errorf("%w: random: %w", ErrSigningFailed, err)
	}
	return keys[n.Int64()], nil
}

// signingKeys lista las claves privadas con kid y algoritmo soportado.
func (ks *KeySet) signingKeys() []signingKey {
	if ks == nil || ks.set == nil {
		return nil
	}
	var out []signingKey
	for i := 0; i < ks.set.Len(); i++ {
		key, ok := ks.set.Key(i)
		if !ok {
			continue
		}
		kid, ok := key.KeyID()
		if !ok || kid == "" {
			continue
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			continue
		}
		if p, ok := raw.(*ed25519.PrivateKey); ok {
			raw = *p
		}
		alg, ok := algorithmFor(raw)
		if !ok {
			continue
		}
		out = append(out, signingKey{kid: kid, alg: alg, raw: raw})
	}
	return out
}

// algorithmFor deriva el alg JWS del tipo de clave privada.
func algorithmFor(raw any) (string, bool) {
	switch k := raw.(type) {
	case ed25519.PrivateKey:
		return "EdDSA", true
	case *rsa.PrivateKey:
		return "RS256", true
	case *ecdsa.PrivateKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return "ES256", true
		case 384:
			return "ES384", true
		case 521:
			return "ES512", true
		}
	}
	return "", false
}
