package adminapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"storefront/pkg/stores"
)

// ErrNoAdminKeys stops a production admin API from running without token checks.
var ErrNoAdminKeys = errors.New("ADMIN_JWKS_URL is required when STOREFRONT_ENV=prod")

// Config holds admin-api specific configuration.
type Config struct {
	// Env "prod" refuses to start without a key set.
	Env            string
	OIDCIssuer     string
	OIDCAudience   string
	JWKSURL        string
	JWKS           jwk.Set // takes precedence over JWKSURL
	AllowedOrigins []string
	RegistryDir    string
	EncryptionKey  string
}

// App is the admin-api application container.
// Handlers and middleware have methods on this type.
//
// db is nil when no database is configured; reads then come from the
// in-memory provider and writes answer 503.
type App struct {
	log          *zap.SugaredLogger
	db           *pgxpool.Pool
	stores       stores.Provider
	validate     *validator.Validate
	adminJWKS    jwk.Set
	adminIssuer  string
	adminAud     string
	origins      []string
	registryDir  string
	encrypterKey []byte
}

// New constructs App and performs one-time startup tasks (schema, registry import).
func New(ctx context.Context, log *zap.SugaredLogger, db *pgxpool.Pool, prov stores.Provider, cfg Config) (*App, error) {
	app := &App{
		log:         log,
		db:          db,
		stores:      prov,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		adminJWKS:   cfg.JWKS,
		adminIssuer: cfg.OIDCIssuer,
		adminAud:    cfg.OIDCAudience,
		origins:     cfg.AllowedOrigins,
		registryDir: cfg.RegistryDir,
	}
	if k := cfg.EncryptionKey; k != "" {
		app.encrypterKey = []byte(k)
	}
	if app.adminJWKS == nil && cfg.JWKSURL != "" {
		set, err := fetchJWKS(ctx, cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("admin jwks: %w", err)
		}
		app.adminJWKS = set
	}
	if app.adminJWKS == nil && cfg.Env == "prod" {
		return nil, ErrNoAdminKeys
	}
	if app.adminJWKS == nil {
		log.Warn("ADMIN_JWKS_URL not set: admin API trusts the X-Store-ID header")
	}
	if db == nil {
		return app, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := stores.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if app.registryDir != "" {
		if n, err := app.importDir(ctx); err != nil {
			log.Warnw("store registry import failed", "dir", app.registryDir, "err", err)
		} else {
			log.Infow("store registry imported", "dir", app.registryDir, "stores", n)
		}
	}
	return app, nil
}

// importDir upserts every store definition found under the registry directory.
func (a *App) importDir(ctx context.Context) (int, error) {
	defs, err := stores.LoadDefinitionsDir(a.registryDir, a.log)
	if err != nil {
		return 0, err
	}
	return stores.SeedFromDefinitions(ctx, a.db, defs, a.encrypterKey)
}
