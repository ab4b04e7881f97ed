package regions

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/medusa"
	"storefront/pkg/stores"
)

var ErrRegionNotFound = errors.New("region not found")

// Source lists the regions of one store's backend.
type Source interface {
	ListRegions(ctx context.Context) ([]medusa.Region, error)
}

type cachedStore struct {
	backend   string
	loadedAt  time.Time
	regions   []medusa.Region
	byCountry map[string]medusa.Region
}

// Cache holds the region list per store for a fixed TTL. An entry belongs to
// the backend it was loaded from; pointing a store at another backend
// reloads its regions.
type Cache struct {
	source  func(stores.Store) Source
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	byStore map[string]cachedStore
}

func NewCache(source func(stores.Store) Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{source: source, ttl: ttl, now: time.Now, byStore: map[string]cachedStore{}}
}

func (c *Cache) load(ctx context.Context, s stores.Store) (cachedStore, error) {
	c.mu.RLock()
	e, ok := c.byStore[s.ID]
	c.mu.RUnlock()
	backend := s.MedusaURL + "|" + s.PublishableKey
	ok = ok && e.backend == backend
	if ok && c.now().Sub(e.loadedAt) < c.ttl {
		return e, nil
	}
	list, err := c.source(s).ListRegions(ctx)
	if err != nil {
		if ok {
			// serve stale rather than break every page while the backend is down
			return e, nil
		}
		return cachedStore{}, err
	}
	e = cachedStore{backend: backend, loadedAt: c.now(), regions: list, byCountry: map[string]medusa.Region{}}
	for _, r := range list {
		for _, ct := range r.Countries {
			e.byCountry[strings.ToLower(ct.ISO2)] = r
		}
	}
	c.mu.Lock()
	c.byStore[s.ID] = e
	c.mu.Unlock()
	return e, nil
}

// Regions returns every region of the store.
func (c *Cache) Regions(ctx context.Context, s stores.Store) ([]medusa.Region, error) {
	e, err := c.load(ctx, s)
	return e.regions, err
}

// ForCountry returns the region serving country, falling back to the store's
// default country.
func (c *Cache) ForCountry(ctx context.Context, s stores.Store, country string) (medusa.Region, error) {
	e, err := c.load(ctx, s)
	if err != nil {
		return medusa.Region{}, err
	}
	if r, ok := e.byCountry[strings.ToLower(strings.TrimSpace(country))]; ok {
		return r, nil
	}
	if r, ok := e.byCountry[s.DefaultCountry]; ok {
		return r, nil
	}
	return medusa.Region{}, ErrRegionNotFound
}

// Countries returns all selectable countries sorted by display name.
func (c *Cache) Countries(ctx context.Context, s stores.Store) ([]medusa.Country, error) {
	e, err := c.load(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]medusa.Country, 0, len(e.byCountry))
	for _, r := range e.regions {
		for _, ct := range r.Countries {
			ct.ISO2 = strings.ToLower(ct.ISO2)
			if ct.DisplayName == "" {
				ct.DisplayName = strings.ToUpper(ct.ISO2)
			}
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}
