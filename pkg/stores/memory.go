package stores

import (
	"context"
	"os"
	"sort"

	"go.uber.org/zap"

	"storefront/pkg/config"
)

type memProvider struct {
	log    *zap.SugaredLogger
	byHost map[string]Store
}

// NewMemoryProvider serves a fixed set of stores.
func NewMemoryProvider(log *zap.SugaredLogger, list ...Store) Provider {
	p := &memProvider{log: log, byHost: map[string]Store{}}
	for _, s := range list {
		p.byHost[s.Host] = s.Normalize()
	}
	return p
}

// NewMemoryProviderFromEnv seeds stores from STORE_SEED_JSON, then cfg.StoreSeedFile,
// else a single dev store built from the global config answering common local hosts.
func NewMemoryProviderFromEnv(cfg config.Config, log *zap.SugaredLogger) Provider {
	p := &memProvider{log: log, byHost: map[string]Store{}}
	var defs []Definition
	if seed := os.Getenv("STORE_SEED_JSON"); seed != "" {
		d, err := parseSeedJSON(seed, log)
		if err != nil {
			log.Warnw("store seed json", "err", err)
		}
		defs = d
	} else if cfg.StoreSeedFile != "" {
		d, err := LoadDefinitionsFile(cfg.StoreSeedFile, log)
		if err != nil {
			log.Warnw("store seed file", "file", cfg.StoreSeedFile, "err", err)
		}
		defs = d
	}
	for _, d := range defs {
		s := d.Store()
		p.byHost[s.Host] = s
	}
	if len(p.byHost) == 0 {
		dev := DevStore(cfg)
		for _, h := range []string{
			"localhost", "localhost:8080", "127.0.0.1", "127.0.0.1:8080",
			"host.docker.internal", "host.docker.internal:8080", "storefront", "storefront:8080",
		} {
			dd := dev
			dd.Host = h
			p.byHost[h] = dd
		}
	}
	return p
}

// DevStore builds the default store from global configuration.
func DevStore(cfg config.Config) Store {
	return Store{
		ID: "00000000-0000-0000-0000-000000000001", Slug: "dev", Name: "Dev Store",
		BasePublicURL: cfg.BasePublicURL, MedusaURL: cfg.MedusaURL, PublishableKey: cfg.MedusaPublishableKey,
		DefaultCountry: cfg.DefaultCountry, StripePublishableKey: cfg.StripePublishableKey, StripeSecretKey: cfg.StripeSecretKey,
	}.Normalize()
}

func (m *memProvider) ResolveStoreByHost(ctx context.Context, host string) (Store, error) {
	if s, ok := m.byHost[host]; ok {
		return s, nil
	}
	return Store{}, ErrStoreNotFound
}

func (m *memProvider) ResolveStoreByID(ctx context.Context, id string) (Store, error) {
	for _, s := range m.byHost {
		if s.ID == id {
			return s, nil
		}
	}
	return Store{}, ErrStoreNotFound
}

func (m *memProvider) ListStores(ctx context.Context) ([]Store, error) {
	seen := map[string]bool{}
	var out []Store
	for _, s := range m.byHost {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
