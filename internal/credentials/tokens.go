package credentials

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/cache"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hellojohn-indieauth/internal/jwt"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/metrics"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// AddToIssuedTokens registra un access token emitido. Es idempotente: un jti
// ya registrado devuelve AlreadyAdded sin error.
func (s *Service) AddToIssuedTokens(ctx context.Context, tok repository.AccessToken) (IssueOutcome, error) {
	log := s.log(ctx, "add_issued_token", store.AccessTokens.Table).With(logger.JTI(tok.JTI))

	if err := tok.Validate(); err != nil {
		return IssueOutcome{}, err
	}
	tok.Revoked, tok.RevocationReason = nil, nil // ISSUED

	if _, err := s.tables.AccessTokens.StoreOne(ctx, tok.ToRecord()); err != nil {
		if repository.IsAlreadyExists(err) {
			log.Debug("token already added")
			return IssueOutcome{Status: AlreadyAdded, Message: "token already added to issued tokens"}, nil
		}
		return IssueOutcome{}, err
	}
	metrics.TokensIssued.WithLabelValues(kindAccess).Inc()
	log.Debug("token added to issued tokens")
	return IssueOutcome{Status: Added, Message: "token added to issued tokens"}, nil
}

// MarkTokenAsRevoked revoca un access token por jti. Nunca falla por un jti
// desconocido (NotFoundButTreatedAsSuccess) y conserva la razón original si ya
// estaba revocado.
func (s *Service) MarkTokenAsRevoked(ctx context.Context, jti, reason string) (RevocationOutcome, error) {
	out, err := s.revokeOne(ctx, s.tables.AccessTokens, store.AccessTokens, jti, reason, kindAccess)
	if err == nil && out.Found() {
		s.rememberRevoked(ctx, jti, out.Reason)
	}
	return out, err
}

// revokeOne aplica la regla first-reason-wins sobre una tabla de tokens.
func (s *Service) revokeOne(ctx context.Context, t store.Table, schema store.Schema, key, reason, kind string) (RevocationOutcome, error) {
	log := s.log(ctx, "revoke_"+kind, schema.Table).With(logger.Key(key), logger.Kind(kind))

	q := store.Where(schema.Key, store.OpEq, key).
		And("revoked", store.OpNe, true).
		WithSet(revokePatch(reason))
	updated, err := t.UpdateMany(ctx, *q)
	if err != nil {
		return RevocationOutcome{}, err
	}
	if len(updated) > 0 {
		metrics.TokensRevoked.WithLabelValues(kind).Inc()
		log.Info("token revoked", logger.Reason(reason))
		return RevocationOutcome{Status: Revoked, Reason: reason, Message: "token revoked"}, nil
	}

	rec, err := t.RetrieveOne(ctx, *store.Where(schema.Key, store.OpEq, key))
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("token not found among issued tokens", logger.Outcome(string(NotFoundButTreatedAsSuccess)))
			return RevocationOutcome{
				Status:  NotFoundButTreatedAsSuccess,
				Message: "token not found among issued tokens",
			}, nil
		}
		return RevocationOutcome{}, err
	}
	prev, _ := rec["revocation_reason"].(string)
	log.Debug("token already revoked", logger.Reason(prev))
	return RevocationOutcome{Status: AlreadyRevoked, Reason: prev, Message: "token already revoked"}, nil
}

// revokePatch marca revoked y, si hay razón, la fija. Sin razón no se toca
// revocation_reason.
func revokePatch(reason string) store.Record {
	set := store.Record{"revoked": true}
	if reason != "" {
		set["revocation_reason"] = reason
	}
	return set
}

// RevokeAllTokens revoca todo access y refresh token todavía activo. Los ya
// revocados conservan su razón. Ambas tablas se procesan en paralelo.
func (s *Service) RevokeAllTokens(ctx context.Context, reason string) (RevokeAllResult, error) {
	log := s.log(ctx, "revoke_all", "").With(logger.Reason(reason))

	var res RevokeAllResult
	var accessJTIs []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := store.Where("revoked", store.OpNe, true).
			WithSet(revokePatch(reason)).
			WithReturning(store.AccessTokens.Key)
		updated, err := s.tables.AccessTokens.UpdateMany(gctx, *q)
		if err != nil {
			return fmt.Errorf("revoke access tokens: %w", err)
		}
		res.AccessTokens = len(updated)
		for _, r := range updated {
			if jti, ok := r[store.AccessTokens.Key].(string); ok {
				accessJTIs = append(accessJTIs, jti)
			}
		}
		return nil
	})
	g.Go(func() error {
		q := store.Where("revoked", store.OpNe, true).
			WithSet(revokePatch(reason)).
			WithReturning(store.RefreshTokens.Key)
		updated, err := s.tables.RefreshTokens.UpdateMany(gctx, *q)
		if err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		res.RefreshTokens = len(updated)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("revoke all failed", logger.Err(err))
		return res, err
	}

	for _, jti := range accessJTIs {
		s.rememberRevoked(ctx, jti, reason)
	}
	metrics.TokensRevoked.WithLabelValues(kindAccess).Add(float64(res.AccessTokens))
	metrics.TokensRevoked.WithLabelValues(kindRefresh).Add(float64(res.RefreshTokens))
	log.Info("all tokens revoked",
		logger.Count(res.AccessTokens+res.RefreshTokens),
		logger.String("access", fmt.Sprint(res.AccessTokens)),
		logger.String("refresh", fmt.Sprint(res.RefreshTokens)),
	)
	return res, nil
}

// IsBlacklisted reporta si jti está registrado y revocado. Un jti desconocido
// no se presume revocado.
func (s *Service) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	_, revoked, err := s.RevocationReason(ctx, jti)
	return revoked, err
}

// RevocationReason devuelve la razón de revocación de jti. Las respuestas
// positivas se cachean con su razón: la revocación es monotónica.
func (s *Service) RevocationReason(ctx context.Context, jti string) (string, bool, error) {
	log := s.log(ctx, "is_blacklisted", store.AccessTokens.Table).With(logger.JTI(jti))

	if s.revoked != nil {
		reason, err := s.revoked.Get(ctx, cacheKey(jti))
		switch {
		case err == nil:
			return reason, true, nil
		case !cache.IsNotFound(err):
			log.Warn("revoked cache lookup failed", logger.Err(err))
		}
	}

	rec, err := s.tables.AccessTokens.RetrieveOne(ctx, *store.Where("jti", store.OpEq, jti))
	if err != nil {
		if repository.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	tok, err := repository.AccessTokenFromRecord(rec)
	if err != nil {
		return "", false, err
	}
	if !tok.IsRevoked() {
		return "", false, nil
	}
	reason := revokedPlaceholder
	if tok.RevocationReason != nil && *tok.RevocationReason != "" {
		reason = *tok.RevocationReason
	}
	s.rememberRevoked(ctx, jti, reason)
	return reason, true, nil
}

func cacheKey(jti string) string { return "jti:" + jti }

// revokedPlaceholder es la razón reportada para una revocación sin razón.
const revokedPlaceholder = "revoked"

// rememberRevoked cachea un jti revocado. Best-effort: el store sigue siendo
// la fuente de verdad.
func (s *Service) rememberRevoked(ctx context.Context, jti, reason string) {
	if s.revoked == nil {
		return
	}
	if reason == "" {
		reason = revokedPlaceholder
	}
	if err := s.revoked.Set(ctx, cacheKey(jti), reason, s.revokedTTL); err != nil {
		logger.From(ctx).Warn("revoked cache write failed", logger.JTI(jti), logger.Err(err))
	}
}

// IssueAccessToken firma claims y registra el jti resultante.
func (s *Service) IssueAccessToken(ctx context.Context, claims map[string]any) (*jwtx.Issued, error) {
	if s.issuer == nil {
		return nil, fmt.Errorf("%w: no issuer configured", repository.ErrSigningFailed)
	}
	issued, err := s.issuer.IssueAccess(claims)
	if err != nil {
		return nil, err
	}
	c := issued.Claims
	if _, err := s.AddToIssuedTokens(ctx, repository.AccessToken{
		JTI:      c.JTI(),
		Exp:      c.Exp(),
		Iat:      c.Iat(),
		ClientID: claimString(c, "client_id"),
		Me:       c.Me(),
		Scope:    c.Scope(),
	}); err != nil {
		return nil, fmt.Errorf("record issued token: %w", err)
	}
	return issued, nil
}

// VerifyAccessToken verifica el JWT y después consulta la revocación.
// Un token revocado es un VerificationError con causa ErrTokenRevoked.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error) {
	if s.verifier == nil || s.jwksURL == "" {
		return nil, &jwtx.VerificationError{Cause: jwtx.ErrJWKSUnavailable, Detail: "no verifier configured"}
	}
	claims, err := s.verifier.Verify(ctx, token, s.expectedIssuer, s.jwksURL, s.maxTokenAge)
	if err != nil {
		s.log(ctx, "verify_access_token", "").Debug("token rejected", logger.Err(err))
		return nil, err
	}
	revoked, err := s.IsBlacklisted(ctx, claims.JTI())
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, &jwtx.VerificationError{Cause: jwtx.ErrTokenRevoked, Detail: "jti " + claims.JTI()}
	}
	return claims, nil
}

func claimString(c jwtx.Claims, k string) string {
	v, _ := c[k].(string)
	return v
}
