package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir vers un répertoire vide : ni .env ni config.yaml parasites
func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "yatube.db", cfg.DBUrl)
	assert.Equal(t, 20*time.Second, cfg.IndexCacheTTL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "/auth/login/", cfg.LoginURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Nil(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.CSRFSecure)
	assert.Empty(t, cfg.CSRFKey)
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_URL", "postgres://u:p@db:5432/yatube")
	t.Setenv("INDEX_CACHE_TTL", "5s")
	t.Setenv("PAGE_SIZE", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("GRPC_PORT", " ")
	t.Setenv("CSRF_SECURE", "true")
	t.Setenv("CSRF_TRUSTED_ORIGINS", "blog.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.IndexCacheTTL)
	assert.Equal(t, 3, cfg.PageSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.GRPCPort)
	assert.True(t, cfg.CSRFSecure)
	assert.Equal(t, []string{"blog.example"}, cfg.CSRFTrustedOrigins)
}

func TestLoadFromYAMLAndDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("PAGE_SIZE: 7\nLOGIN_URL: /login/\n"), 0o600))
	require.NoError(t, os.WriteFile(".env", []byte("SERVICE_NAME=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SERVICE_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PageSize)
	assert.Equal(t, "/login/", cfg.LoginURL)
	assert.Equal(t, "from-dotenv", cfg.ServiceName)
}

func TestValidate(t *testing.T) {
	base := Config{Env: "local", DBDriver: "sqlite", PageSize: 10}
	require.NoError(t, base.Validate())

	bad := base
	bad.DBDriver = "mysql"
	assert.ErrorContains(t, bad.Validate(), "DB_DRIVER")

	bad = base
	bad.DBDriver = "postgres"
	assert.ErrorContains(t, bad.Validate(), "DB_URL")

	bad = base
	bad.PageSize = 0
	assert.ErrorContains(t, bad.Validate(), "PAGE_SIZE")

	prod := base
	prod.Env = "prod"
	assert.ErrorContains(t, prod.Validate(), "DB_URL")
	prod.DBUrl = "postgres://x"
	assert.ErrorContains(t, prod.Validate(), "JWT_PUBLIC_KEY_PATH")
	prod.JWTPublicKeyPath = "/keys/jwt.pub"
	assert.ErrorContains(t, prod.Validate(), "CSRF_KEY")
	prod.CSRFKey = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, prod.Validate())

	bad = base
	bad.CSRFKey = "too-short"
	assert.ErrorContains(t, bad.Validate(), "CSRF_KEY")
}
