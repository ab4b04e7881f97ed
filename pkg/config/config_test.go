package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STOREFRONT_ENV", "STOREFRONT_HTTP_ADDR", "DEFAULT_COUNTRY", "SESSION_TTL_SEC", "SESSION_SECRET", "ADMIN_CORS_ORIGINS", "SECURE_COOKIES"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "us", cfg.DefaultCountry)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "dev-session-secret", cfg.SessionSecret)
	assert.Equal(t, []string{"http://localhost:3001"}, cfg.AdminOrigins)
	assert.False(t, cfg.SecureCookies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_ENV", "prod")
	t.Setenv("DEFAULT_COUNTRY", "DE")
	t.Setenv("UPSTREAM_TIMEOUT_SEC", "3")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("ADMIN_CORS_ORIGINS", " https://a.test , ,https://b.test")
	cfg := Load()
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "de", cfg.DefaultCountry)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	assert.True(t, cfg.SecureCookies)
	assert.Empty(t, cfg.SessionSecret)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AdminOrigins)
}
