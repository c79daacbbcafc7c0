package credentials

import (
	"context"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/metrics"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	tokens "github.com/dropDatabas3/hellojohn-indieauth/internal/security/token"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const refreshTokenBytes = 32

// IssueRefreshToken persiste un refresh token. Si Token viene vacío se genera
// uno opaco (32 bytes, base64url); Exp default now + RefreshTTL. Una colisión
// es ErrAlreadyExists: el token es el secreto.
func (s *Service) IssueRefreshToken(ctx context.Context, rt repository.RefreshToken) (*repository.RefreshToken, error) {
	now := s.now()
	if rt.Token == "" {
		tok, err := tokens.Opaque(refreshTokenBytes)
		if err != nil {
			return nil, err
		}
		rt.Token = tok
	}
	if rt.Iat == 0 {
		rt.Iat = now.Unix()
	}
	if rt.Exp == 0 {
		rt.Exp = now.Add(s.refreshTTL).Unix()
	}
	rt.Revoked, rt.RevocationReason = nil, nil
	if err := rt.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.tables.RefreshTokens.StoreOne(ctx, rt.ToRecord()); err != nil {
		return nil, err
	}
	metrics.TokensIssued.WithLabelValues(kindRefresh).Inc()
	s.log(ctx, "issue_refresh_token", store.RefreshTokens.Table).
		Debug("refresh token issued", logger.ClientID(rt.ClientID), logger.JTI(rt.JTI))
	return &rt, nil
}

// RetrieveRefreshToken busca un refresh token por su valor.
func (s *Service) RetrieveRefreshToken(ctx context.Context, token string) (*repository.RefreshToken, error) {
	rec, err := s.tables.RefreshTokens.RetrieveOne(ctx, *store.Where(store.RefreshTokens.Key, store.OpEq, token))
	if err != nil {
		return nil, err
	}
	return repository.RefreshTokenFromRecord(rec)
}

// MarkRefreshTokenAsRevoked sigue las mismas reglas que MarkTokenAsRevoked.
func (s *Service) MarkRefreshTokenAsRevoked(ctx context.Context, token, reason string) (RevocationOutcome, error) {
	return s.revokeOne(ctx, s.tables.RefreshTokens, store.RefreshTokens, token, reason, kindRefresh)
}
