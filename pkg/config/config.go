package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	HTTPAddr  string // storefront-service
	AdminAddr string // admin-api-service

	BasePublicURL string

	// Default upstream (store-specific override via provider)
	MedusaURL            string
	MedusaPublishableKey string
	DefaultCountry       string
	StripePublishableKey string
	StripeSecretKey      string
	UpstreamTimeout      time.Duration
	RegionCacheTTL       time.Duration

	// Visitor sessions
	SessionCookie string
	SessionTTL    time.Duration
	SessionSecret string // signs the session cookie
	SecureCookies bool

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Store definitions
	StoreSeedFile string
	RegistryDir   string // admin import directory
	EncryptionKey string

	// Admin OIDC
	AdminIssuer   string
	AdminAudience string
	AdminJWKSURL  string
	AdminOrigins  []string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("STOREFRONT_ENV", "dev"),
		HTTPAddr:             env("STOREFRONT_HTTP_ADDR", ":8080"),
		AdminAddr:            env("ADMIN_HTTP_ADDR", ":8082"),
		BasePublicURL:        env("BASE_PUBLIC_URL", "http://localhost:8080"),
		MedusaURL:            env("MEDUSA_BACKEND_URL", "http://localhost:9000"),
		MedusaPublishableKey: env("MEDUSA_PUBLISHABLE_KEY", ""),
		DefaultCountry:       strings.ToLower(env("DEFAULT_COUNTRY", "us")),
		StripePublishableKey: env("STRIPE_PUBLISHABLE_KEY", ""),
		StripeSecretKey:      env("STRIPE_SECRET_KEY", ""),
		UpstreamTimeout:      envDur("UPSTREAM_TIMEOUT_SEC", 15) * time.Second,
		RegionCacheTTL:       envDur("REGION_CACHE_TTL_SEC", 3600) * time.Second,
		SessionCookie:        env("SESSION_COOKIE", "_sf_session"),
		SessionTTL:           envDur("SESSION_TTL_SEC", 7*24*3600) * time.Second,
		SessionSecret:        env("SESSION_SECRET", ""),
		SecureCookies:        envBool("SECURE_COOKIES", false),
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
		StoreSeedFile:        env("STORE_SEED_FILE", ""),
		RegistryDir:          env("STORE_REGISTRY_DIR", ""),
		EncryptionKey:        env("ENCRYPTION_KEY", ""),
		AdminIssuer:          env("ADMIN_OIDC_ISSUER", ""),
		AdminAudience:        env("ADMIN_OIDC_AUDIENCE", "storefront-admin"),
		AdminJWKSURL:         env("ADMIN_JWKS_URL", ""),
		AdminOrigins:         envList("ADMIN_CORS_ORIGINS", []string{"http://localhost:3001"}),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set: using in-memory store provider for dev")
	}
	if cfg.RedisURL == "" {
		log.Println("[WARN] REDIS_URL not set: visitor sessions are kept in memory")
	}
	if cfg.SessionSecret == "" {
		if cfg.Env == "prod" {
			log.Println("[WARN] SESSION_SECRET not set: session cookies are unsigned")
		} else {
			cfg.SessionSecret = "dev-session-secret"
		}
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func envList(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
