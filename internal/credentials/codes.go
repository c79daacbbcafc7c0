package credentials

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/metrics"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/rate"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
)

// IssueCode persiste un code recién emitido. Un code ya registrado es
// ErrAlreadyExists (colisión del generador).
func (s *Service) IssueCode(ctx context.Context, code repository.AuthorizationCode) error {
	log := s.log(ctx, "issue_code", store.AuthCodes.Table)

	if err := code.Validate(); err != nil {
		return err
	}
	code.Used = nil // ISSUED

	if _, err := s.tables.Codes.StoreOne(ctx, code.ToRecord()); err != nil {
		if repository.IsAlreadyExists(err) {
			log.Warn("authorization code collision", logger.Code(code.Code))
		}
		return err
	}
	metrics.CodesIssued.Inc()
	log.Debug("authorization code issued", logger.Code(code.Code), logger.ClientID(code.ClientID))
	return nil
}

// MarkCodeAsUsed canjea el code: ErrNotFound si no existe, ErrAlreadyUsed si
// ya fue canjeado. La actualización filtra used != true, así dos canjes
// concurrentes no pueden ganar ambos en backends que filtran dentro del update.
func (s *Service) MarkCodeAsUsed(ctx context.Context, code string) error {
	log := s.log(ctx, "mark_code_used", store.AuthCodes.Table).With(logger.Code(code))

	q := store.Where("code", store.OpEq, code).
		And("used", store.OpNe, true).
		WithSet(store.Record{"used": true})
	updated, err := s.tables.Codes.UpdateMany(ctx, *q)
	if err != nil {
		return err
	}
	if len(updated) > 0 {
		log.Debug("authorization code used")
		return nil
	}

	rec, err := s.tables.Codes.RetrieveOne(ctx, *store.Where("code", store.OpEq, code))
	if err != nil {
		if repository.IsNotFound(err) {
			log.Info("authorization code not found")
		}
		return err
	}
	ac, err := repository.AuthorizationCodeFromRecord(rec)
	if err != nil {
		return err
	}
	if ac.IsUsed() {
		metrics.CodeReuse.Inc()
		log.Warn("authorization code reuse", logger.ClientID(ac.ClientID), logger.Me(ac.Me))
		return repository.ErrAlreadyUsed
	}
	// existe y no está usado pero el update no lo tocó: otro writer lo cambió en el medio
	return fmt.Errorf("%w: code changed during update", repository.ErrConflict)
}

// Redemption son los datos que presenta el cliente al canjear un code.
// Los campos vacíos no se comparan, salvo Verifier cuando el code tiene challenge.
type Redemption struct {
	ClientID    string
	RedirectURI string
	Verifier    string
}

// RedeemCode valida el canje completo y marca el code como usado:
// expirado → ErrCodeExpired; client/redirect/PKCE distintos → ErrVerifierMismatch.
// Un code rechazado por mismatch no se consume.
func (s *Service) RedeemCode(ctx context.Context, code string, r Redemption) (*repository.AuthorizationCode, error) {
	log := s.log(ctx, "redeem_code", store.AuthCodes.Table).With(logger.Code(code))

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, "redeem:"+code)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			log.Warn("redeem attempts exhausted", logger.Count(int(res.CurrentHits)))
			return nil, fmt.Errorf("%w: retry after %s", rate.ErrLimited, res.RetryAfter)
		}
	}

	ac, status, err := s.RetrieveAuthorizationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch status {
	case repository.CodeUsed:
		metrics.CodeReuse.Inc()
		log.Warn("authorization code reuse", logger.ClientID(ac.ClientID), logger.Me(ac.Me))
		return nil, repository.ErrAlreadyUsed
	case repository.CodeExpired:
		return nil, repository.ErrCodeExpired
	}
	if r.ClientID != "" && r.ClientID != ac.ClientID {
		return nil, fmt.Errorf("%w: client_id", repository.ErrVerifierMismatch)
	}
	if r.RedirectURI != "" && r.RedirectURI != ac.RedirectURI {
		return nil, fmt.Errorf("%w: redirect_uri", repository.ErrVerifierMismatch)
	}
	if err := ac.VerifyCodeVerifier(r.Verifier); err != nil {
		log.Info("pkce verification failed", logger.ClientID(ac.ClientID))
		return nil, err
	}

	if err := s.MarkCodeAsUsed(ctx, code); err != nil {
		return nil, err
	}
	ac.Used = repository.Bool(true)
	return ac, nil
}

// RetrieveAuthorizationCode devuelve el code y su estado en este instante.
func (s *Service) RetrieveAuthorizationCode(ctx context.Context, code string) (*repository.AuthorizationCode, repository.CodeStatus, error) {
	rec, err := s.tables.Codes.RetrieveOne(ctx, *store.Where("code", store.OpEq, code))
	if err != nil {
		return nil, "", err
	}
	ac, err := repository.AuthorizationCodeFromRecord(rec)
	if err != nil {
		return nil, "", err
	}
	return ac, ac.Status(s.now()), nil
}

// PurgeExpiredCodes elimina los codes con exp < now. Devuelve cuántos borró.
func (s *Service) PurgeExpiredCodes(ctx context.Context) (int, error) {
	removed, err := s.tables.Codes.RemoveMany(ctx, store.Where("exp", store.OpLt, s.now().Unix()))
	if err != nil {
		return 0, err
	}
	s.log(ctx, "purge_expired_codes", store.AuthCodes.Table).Info("expired codes purged", logger.Count(len(removed)))
	return len(removed), nil
}
