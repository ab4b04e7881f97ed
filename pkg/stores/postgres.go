package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
	key    []byte // ENCRYPTION_KEY for secrets_encrypted
}

// NewPostgresProvider constructs a PostgreSQL-backed store provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger, encryptionKey string) Provider {
	return &pgProvider{dbPool: dbPool, log: log, key: []byte(encryptionKey)}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stores (
  id uuid PRIMARY KEY,
  slug text UNIQUE,
  host text UNIQUE,
  name text,
  base_public_url text,
  medusa_url text NOT NULL,
  publishable_key text,
  default_country text DEFAULT 'us',
  stripe_publishable_key text,
  secrets_encrypted bytea,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	store_id uuid NOT NULL REFERENCES stores(id) ON DELETE CASCADE,
	operation text,
	method text,
	path text,
	request_id text,
	status_code int,
	duration_ms int,
	started_at timestamptz NOT NULL DEFAULT NOW(),
	finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS usage_events_store_started_idx ON usage_events(store_id, started_at DESC);
-- Columns added after the first release
ALTER TABLE stores ADD COLUMN IF NOT EXISTS name text;
ALTER TABLE stores ADD COLUMN IF NOT EXISTS stripe_publishable_key text;
ALTER TABLE stores ADD COLUMN IF NOT EXISTS secrets_encrypted bytea;
`)
	return err
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Upsert writes a store definition, encrypting its secrets with key.
// An empty StripeSecretKey keeps the stored secrets untouched.
func Upsert(ctx context.Context, q Execer, s Store, key []byte) error {
	s = s.Normalize()
	var secrets []byte
	if s.StripeSecretKey != "" {
		b, err := EncryptSecrets(Secrets{StripeSecretKey: s.StripeSecretKey}, key)
		if err != nil {
			return err
		}
		secrets = b
	}
	_, err := q.Exec(ctx, `INSERT INTO stores(id,slug,host,name,base_public_url,medusa_url,publishable_key,default_country,stripe_publishable_key,secrets_encrypted)
	  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	  ON CONFLICT (id) DO UPDATE SET slug=EXCLUDED.slug, host=EXCLUDED.host, name=EXCLUDED.name,
	    base_public_url=EXCLUDED.base_public_url, medusa_url=EXCLUDED.medusa_url, publishable_key=EXCLUDED.publishable_key,
	    default_country=EXCLUDED.default_country, stripe_publishable_key=EXCLUDED.stripe_publishable_key,
	    secrets_encrypted=COALESCE(EXCLUDED.secrets_encrypted, stores.secrets_encrypted), updated_at=NOW()`,
		s.ID, s.Slug, s.Host, s.Name, s.BasePublicURL, s.MedusaURL, s.PublishableKey, s.DefaultCountry, s.StripePublishableKey, secrets)
	return err
}

// SeedFromDefinitions upserts the given definitions.
func SeedFromDefinitions(ctx context.Context, dbPool *pgxpool.Pool, defs []Definition, key []byte) (int, error) {
	n := 0
	for _, d := range defs {
		if err := Upsert(ctx, dbPool, d.Store(), key); err != nil {
			return n, fmt.Errorf("seed store %s: %w", d.ID, err)
		}
		n++
	}
	return n, nil
}

const selectStore = `SELECT id::text, COALESCE(slug,''), COALESCE(host,''), COALESCE(name,''), COALESCE(base_public_url,''),
	medusa_url, COALESCE(publishable_key,''), COALESCE(default_country,'us'), COALESCE(stripe_publishable_key,''), secrets_encrypted
	FROM stores`

func (p *pgProvider) scan(row pgx.Row) (Store, error) {
	var s Store
	var secrets []byte
	if err := row.Scan(&s.ID, &s.Slug, &s.Host, &s.Name, &s.BasePublicURL, &s.MedusaURL, &s.PublishableKey,
		&s.DefaultCountry, &s.StripePublishableKey, &secrets); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrStoreNotFound
		}
		return Store{}, err
	}
	sec, err := DecryptSecrets(secrets, p.key)
	if err != nil {
		p.log.Warnw("store secrets unreadable", "store", s.ID, "err", err)
	}
	s.StripeSecretKey = sec.StripeSecretKey
	return s.Normalize(), nil
}

// ResolveStoreByHost fetches a store using its host value.
func (p *pgProvider) ResolveStoreByHost(ctx context.Context, host string) (Store, error) {
	return p.scan(p.dbPool.QueryRow(ctx, selectStore+` WHERE host=$1`, host))
}

// ResolveStoreByID fetches a store by its UUID.
func (p *pgProvider) ResolveStoreByID(ctx context.Context, id string) (Store, error) {
	return p.scan(p.dbPool.QueryRow(ctx, selectStore+` WHERE id=$1`, id))
}

func (p *pgProvider) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := p.dbPool.Query(ctx, selectStore+` ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Store
	for rows.Next() {
		s, err := p.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
