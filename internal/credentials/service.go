// Package credentials implementa el ciclo de vida de authorization codes,
// access tokens y refresh tokens sobre el Storage Port.
//
// Máquinas de estado:
//
//	code:  ISSUED → USED            (EXPIRED se calcula al leer)
//	token: ISSUED → REVOKED         (la primera razón gana)
//
// El servicio es la única capa que traduce un registro ausente en un
// resultado de dominio (revocar un jti desconocido es éxito; canjear un code
// desconocido es ErrNotFound).
package credentials

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/cache"
	jwtx "github.com/dropDatabas3/hellojohn-indieauth/internal/jwt"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/rate"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// Deps contiene las dependencias del servicio. Solo Tables es obligatorio.
type Deps struct {
	Tables *store.Tables

	// Issuer firma access tokens (IssueAccessToken). Opcional.
	Issuer *jwtx.Issuer
	// Verifier valida access tokens contra JWKSURL (VerifyAccessToken). Opcional.
	Verifier *jwtx.Verifier
	JWKSURL  string
	// ExpectedIssuer es el iss esperado al verificar; default Issuer.Iss.
	ExpectedIssuer string
	// MaxTokenAge acota now - iat al verificar; 0 = sin límite.
	MaxTokenAge time.Duration

	// RevokedCache recuerda jti revocados. Opcional.
	RevokedCache cache.Client
	RevokedTTL   time.Duration

	// RedeemLimiter acota los intentos de canje por code. Opcional.
	RedeemLimiter rate.Limiter

	// RefreshTTL es el TTL de refresh tokens sin exp explícito (default 30d).
	RefreshTTL time.Duration

	Now func() time.Time
}

// Service es el Credential Lifecycle Service.
type Service struct {
	tables *store.Tables

	issuer         *jwtx.Issuer
	verifier       *jwtx.Verifier
	jwksURL        string
	expectedIssuer string
	maxTokenAge    time.Duration

	revoked    cache.Client
	revokedTTL time.Duration
	refreshTTL time.Duration
	limiter    rate.Limiter

	now func() time.Time
}

var errNoTables = errors.New("credentials: tables are required")

// NewService crea el servicio.
func NewService(d Deps) (*Service, error) {
	if d.Tables == nil {
		return nil, errNoTables
	}
	s := &Service{
		tables:         d.Tables,
		issuer:         d.Issuer,
		verifier:       d.Verifier,
		jwksURL:        d.JWKSURL,
		expectedIssuer: d.ExpectedIssuer,
		maxTokenAge:    d.MaxTokenAge,
		revoked:        d.RevokedCache,
		revokedTTL:     d.RevokedTTL,
		refreshTTL:     d.RefreshTTL,
		limiter:        d.RedeemLimiter,
		now:            d.Now,
	}
	if s.expectedIssuer == "" && s.issuer != nil {
		s.expectedIssuer = s.issuer.Iss
	}
	if s.revokedTTL <= 0 {
		s.revokedTTL = 24 * time.Hour
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = 30 * 24 * time.Hour // 30 days default
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Service) log(ctx context.Context, op, table string) *zap.Logger {
	return logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("credentials"),
		logger.Op(op),
		logger.Table(table),
	)
}
