// Package app arma el servicio de credenciales a partir de la config:
// storage, cache de revocados, issuer/verifier JWT y métricas.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dropDatabas3/hellojohn-indieauth/internal/cache"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/config"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/credentials"
	jwtx "github.com/dropDatabas3/hellojohn-indieauth/internal/jwt"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/metrics"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/observability/logger"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/rate"
	"github.com/dropDatabas3/hellojohn-indieauth/internal/store"
	_ "github.com/dropDatabas3/hellojohn-indieauth/internal/store/adapters/dal"
)

// Container contiene las piezas armadas. Issuer y Verifier pueden ser nil
// si la config no trae JWKS.
type Container struct {
	Config   *config.Config
	Tables   *store.Tables
	Cache    cache.Client
	Issuer   *jwtx.Issuer
	Verifier *jwtx.Verifier
	Service  *credentials.Service

	cancel context.CancelFunc
}

// New abre el storage y arma el servicio. No corre migraciones.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logger.From(ctx).Named("app")

	var observer store.OpObserver
	if cfg.Metrics.Enabled {
		if err := metrics.Register(nil); err != nil {
			return nil, fmt.Errorf("app: register metrics: %w", err)
		}
		observer = metrics.ObserveStoreOp
	}

	tables, err := store.Open(ctx, store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		Dialect:         cfg.Storage.Dialect,
		DSN:             cfg.Storage.DSN,
		Root:            cfg.Storage.Root,
		Namespace:       cfg.Storage.Namespace,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		Observer:        observer,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	c := &Container{Config: cfg, Tables: tables}

	c.Cache, err = cache.New(ctx, cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.CacheDefaultTTL(),
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	if p := strings.TrimSpace(cfg.JWT.JWKSPath); p != "" {
		keys, err := jwtx.LoadKeySet(p)
		switch {
		case err == nil:
			c.Issuer = jwtx.NewIssuer(cfg.JWT.Issuer, keys, cfg.AccessTTL())
		case errors.Is(err, os.ErrNotExist):
			log.Warn("jwks not found, token signing disabled", logger.String("path", p))
		default:
			_ = c.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if cfg.JWT.JWKSURL != "" {
		vctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.Verifier, err = jwtx.NewVerifier(vctx, nil, cfg.JWKSFetchTimeout())
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	var limiter rate.Limiter
	if n := cfg.Codes.MaxRedeemAttempts; n > 0 {
		limiter = rate.NewFixedWindow(c.Cache, "rl:", n, cfg.CodeTTL())
	}

	c.Service, err = credentials.NewService(credentials.Deps{
		Tables:         tables,
		Issuer:         c.Issuer,
		Verifier:       c.Verifier,
		JWKSURL:        cfg.JWT.JWKSURL,
		ExpectedIssuer: cfg.JWT.Issuer,
		MaxTokenAge:    cfg.MaxTokenAge(),
		RevokedCache:   c.Cache,
		RevokedTTL:     cfg.RevokedTTL(),
		RefreshTTL:     cfg.RefreshTTL(),
		RedeemLimiter:  limiter,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	log.Debug("app ready", logger.Backend(tables.Conn().Name()))
	return c, nil
}

// Close libera storage, cache y el refresco de JWKS.
func (c *Container) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	var errs []error
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	errs = append(errs, c.Tables.Close())
	return errors.Join(errs...)
}
