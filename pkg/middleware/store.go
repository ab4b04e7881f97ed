package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront/pkg/stores"
)

type ctxStoreKey struct{}

func WithStore(prov stores.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow health/metrics without store context
			switch r.URL.Path {
			case "/healthz", "/ping", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			host := strings.ToLower(r.Host)
			bare := host
			if i := strings.Index(bare, ":"); i > 0 {
				bare = bare[:i]
			}
			// Inside Docker the same local store is reached under several names.
			tryHosts := []string{host}
			if bare != host {
				tryHosts = append(tryHosts, bare)
			}
			switch bare {
			case "127.0.0.1", "host.docker.internal", "storefront":
				tryHosts = append(tryHosts, "localhost")
			}
			var s stores.Store
			var err error
			for _, h := range tryHosts {
				s, err = prov.ResolveStoreByHost(r.Context(), h)
				if err == nil {
					break
				}
			}
			if err != nil {
				http.Error(w, "unknown store", http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), ctxStoreKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithStoreContext attaches s to ctx.
func WithStoreContext(ctx context.Context, s stores.Store) context.Context {
	return context.WithValue(ctx, ctxStoreKey{}, s)
}

func StoreFrom(ctx context.Context) stores.Store {
	if v := ctx.Value(ctxStoreKey{}); v != nil {
		return v.(stores.Store)
	}
	return stores.Store{}
}
