package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Storage struct {
		// memory | jsonfile | jsonl | sql (aliases: mem, fs, json, pg, postgres, sqlite)
		Driver  string `yaml:"driver"`
		Dialect string `yaml:"dialect"` // postgres | sqlite (solo driver sql)
		DSN     string `yaml:"dsn"`
		// Root es el directorio de datos para jsonfile/jsonl.
		Root      string `yaml:"root"`
		Namespace string `yaml:"namespace"` // memory
		Postgres  struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
		// RevokedTTL acota cuánto se recuerda un jti revocado en cache.
		RevokedTTL string `yaml:"revoked_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Issuer       string `yaml:"issuer"`
		AccessTTL    string `yaml:"access_ttl"`
		RefreshTTL   string `yaml:"refresh_ttl"`
		JWKSPath     string `yaml:"jwks_path"` // JWKS privado (firma)
		JWKSURL      string `yaml:"jwks_url"`  // JWKS público remoto (verificación)
		MaxTokenAge  string `yaml:"max_token_age"`
		FetchTimeout string `yaml:"jwks_fetch_timeout"`
	} `yaml:"jwt"`

	Codes struct {
		TTL string `yaml:"ttl"`
		// MaxRedeemAttempts por code dentro de su TTL (default 5); negativo desactiva el límite.
		MaxRedeemAttempts int `yaml:"max_redeem_attempts"`
	} `yaml:"codes"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default devuelve una config con defaults y overrides de entorno aplicados,
// sin leer YAML.
func Default() (*Config, error) {
	var c Config
	return c.finish("")
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c.finish(path)
}

func (c *Config) finish(path string) (*Config, error) {
	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	// Normalizar root relativo respecto al directorio del YAML
	if p := strings.TrimSpace(c.Storage.Root); p != "" && path != "" && !filepath.IsAbs(p) {
		c.Storage.Root = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	if p := strings.TrimSpace(c.JWT.JWKSPath); p != "" && path != "" && !filepath.IsAbs(p) {
		c.JWT.JWKSPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "jsonfile"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/indieauth"
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "default"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.RevokedTTL == "" {
		c.Cache.RevokedTTL = "24h"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.JWT.MaxTokenAge == "" {
		c.JWT.MaxTokenAge = "0s" // sin límite
	}
	if c.JWT.FetchTimeout == "" {
		c.JWT.FetchTimeout = "5s"
	}
	if c.Codes.TTL == "" {
		c.Codes.TTL = "5m"
	}
	if c.Codes.MaxRedeemAttempts == 0 {
		c.Codes.MaxRedeemAttempts = 5
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DIALECT"); ok {
		c.Storage.Dialect = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_ROOT"); ok {
		c.Storage.Root = v
	}
	if v, ok := getEnvStr("STORAGE_NAMESPACE"); ok {
		c.Storage.Namespace = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	// Support both legacy and namespaced env names
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	} else if v, ok := getEnvStr("MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}
	if v, ok := getEnvStr("CACHE_REVOKED_TTL"); ok {
		c.Cache.RevokedTTL = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvStr("JWT_JWKS_PATH"); ok {
		c.JWT.JWKSPath = v
	}
	if v, ok := getEnvStr("JWT_JWKS_URL"); ok {
		c.JWT.JWKSURL = v
	}
	if v, ok := getEnvStr("JWT_MAX_TOKEN_AGE"); ok {
		c.JWT.MaxTokenAge = v
	}
	if v, ok := getEnvStr("JWKS_FETCH_TIMEOUT"); ok {
		c.JWT.FetchTimeout = v
	}
	// Test-only overrides (useful in CI/e2e): take precedence if set
	if v, ok := getEnvStr("TEST_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}

	// CODES
	if v, ok := getEnvStr("CODE_TTL"); ok {
		c.Codes.TTL = v
	}
	if v, ok := getEnvInt("CODE_MAX_REDEEM_ATTEMPTS"); ok {
		c.Codes.MaxRedeemAttempts = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// Validate chequea drivers y que todas las duraciones parseen.
func (c *Config) Validate() error {
	var errs []error

	durations := map[string]string{
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"cache.memory.default_ttl":           c.Cache.Memory.DefaultTTL,
		"cache.revoked_ttl":                  c.Cache.RevokedTTL,
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"jwt.refresh_ttl":                    c.JWT.RefreshTTL,
		"jwt.max_token_age":                  c.JWT.MaxTokenAge,
		"jwt.jwks_fetch_timeout":             c.JWT.FetchTimeout,
		"codes.ttl":                          c.Codes.TTL,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", name, err))
		}
	}

	switch strings.ToLower(c.Cache.Kind) {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: cache.kind %q must be memory or redis", c.Cache.Kind))
	}
	if strings.EqualFold(c.Cache.Kind, "redis") && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		errs = append(errs, errors.New("config: cache.redis.addr is required when cache.kind=redis"))
	}
	return errors.Join(errs...)
}

// dur parsea una duración ya validada; vacía o inválida → 0.
func dur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

func (c *Config) AccessTTL() time.Duration        { return dur(c.JWT.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration       { return dur(c.JWT.RefreshTTL) }
func (c *Config) MaxTokenAge() time.Duration      { return dur(c.JWT.MaxTokenAge) }
func (c *Config) JWKSFetchTimeout() time.Duration { return dur(c.JWT.FetchTimeout) }
func (c *Config) CodeTTL() time.Duration          { return dur(c.Codes.TTL) }
func (c *Config) RevokedTTL() time.Duration       { return dur(c.Cache.RevokedTTL) }
func (c *Config) CacheDefaultTTL() time.Duration  { return dur(c.Cache.Memory.DefaultTTL) }
func (c *Config) ConnMaxLifetime() time.Duration  { return dur(c.Storage.Postgres.ConnMaxLifetime) }
