package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeYAML(t, "jwt:\n  issuer: https://auth.example/\n")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jsonfile", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, time.Hour, c.AccessTTL())
	assert.Equal(t, 720*time.Hour, c.RefreshTTL())
	assert.Equal(t, 5*time.Minute, c.CodeTTL())
	assert.Equal(t, 5, c.Codes.MaxRedeemAttempts)
	assert.Equal(t, 5*time.Second, c.JWKSFetchTimeout())
	assert.Zero(t, c.MaxTokenAge())
	// root relativo se resuelve contra el directorio del YAML
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "indieauth"), c.Storage.Root)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeYAML(t, `
storage:
  driver: memory
jwt:
  issuer: https://yaml.example/
  access_ttl: 10m
`)
	t.Setenv("STORAGE_DRIVER", "sql")
	t.Setenv("STORAGE_DIALECT", "sqlite")
	t.Setenv("STORAGE_DSN", "file:test.db")
	t.Setenv("JWT_ISSUER", "https://env.example/")
	t.Setenv("JWT_MAX_TOKEN_AGE", "2h")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "7")
	t.Setenv("METRICS_ENABLED", "true")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sql", c.Storage.Driver)
	assert.Equal(t, "sqlite", c.Storage.Dialect)
	assert.Equal(t, "file:test.db", c.Storage.DSN)
	assert.Equal(t, "https://env.example/", c.JWT.Issuer)
	assert.Equal(t, 10*time.Minute, c.AccessTTL())
	assert.Equal(t, 2*time.Hour, c.MaxTokenAge())
	assert.Equal(t, 7, c.Storage.Postgres.MaxOpenConns)
	assert.True(t, c.Metrics.Enabled)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "jwt:\n  access_ttl: forever\n",
		"bad cache kind": "cache:\n  kind: memcached\n",
		"redis sin addr": "cache:\n  kind: redis\n",
		"yaml roto":      "jwt: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultWithoutFile(t *testing.T) {
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")

	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, "./data/indieauth", c.Storage.Root)
	assert.Equal(t, 24*time.Hour, c.RevokedTTL())
}
