package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"storefront/pkg/problems"
	"storefront/pkg/stores"
)

// Admin roles accepted in the token's role claim.
const (
	RoleStoreAdmin    = "store_admin"
	RolePlatformAdmin = "platform_admin"
)

// principal is the authenticated admin. Store is empty for a platform admin
// that did not select one.
type principal struct {
	Subject string
	Role    string
	Store   stores.Store
}

func (p principal) platform() bool { return p.Role == RolePlatformAdmin }

type ctxPrincipalKey struct{}

func principalFrom(ctx context.Context) principal {
	p, _ := ctx.Value(ctxPrincipalKey{}).(principal)
	return p
}

func fetchJWKS(ctx context.Context, url string) (jwk.Set, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return jwk.Fetch(ctx, url)
}

// cors returns a middleware that sets CORS headers and handles preflight requests.
// allowed may contain exact origins (e.g., http://localhost:3001) or "*" to allow all.
func cors(allowed []string) func(http.Handler) http.Handler {
	match := func(origin string) (string, bool) {
		if origin == "" {
			return "", false
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || a == origin {
				return a, true
			}
		}
		return "", false
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if ao, ok := match(origin); ok {
				w.Header().Set("Access-Control-Allow-Origin", ao)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Store-ID")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveStore accepts a store uuid, slug or host.
func (a *App) resolveStore(ctx context.Context, ref string) (stores.Store, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return a.stores.ResolveStoreByID(ctx, ref)
	}
	list, err := a.stores.ListStores(ctx)
	if err != nil {
		return stores.Store{}, err
	}
	for _, s := range list {
		if s.Slug == ref || s.Host == ref {
			return s, nil
		}
	}
	return stores.Store{}, stores.ErrStoreNotFound
}

// adminAuth validates admin bearer or allows dev header override when JWKS not configured.
func (a *App) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principal{Subject: "dev", Role: RolePlatformAdmin}
		ref := strings.TrimSpace(r.Header.Get("X-Store-ID"))

		if a.adminJWKS == nil {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		} else {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token", "")
				return
			}
			tok := strings.TrimSpace(authz[len("Bearer "):])
			jt, err := jwt.Parse([]byte(tok),
				jwt.WithKeySet(a.adminJWKS),
				jwt.WithIssuer(a.adminIssuer),
				jwt.WithAudience(a.adminAud),
				jwt.WithValidate(true),
			)
			if err != nil {
				problems.Write(w, http.StatusUnauthorized, "unauthorized", "Invalid token", "")
				return
			}
			role, _ := jt.Get("role")
			p = principal{Subject: jt.Subject(), Role: fmt.Sprint(role)}
			switch p.Role {
			case RolePlatformAdmin:
			case RoleStoreAdmin:
				// store admins are pinned to the store in their token
				sid, _ := jt.Get("store_id")
				if sid == nil {
					problems.Write(w, http.StatusForbidden, "forbidden", "Token carries no store", "")
					return
				}
				ref = fmt.Sprint(sid)
			default:
				problems.Write(w, http.StatusForbidden, "forbidden", "Admin role required", "")
				return
			}
		}

		if ref != "" {
			s, err := a.resolveStore(r.Context(), ref)
			if err != nil {
				if errors.Is(err, stores.ErrStoreNotFound) {
					problems.Write(w, http.StatusNotFound, "store-not-found", "Unknown store", ref)
					return
				}
				a.log.Errorw("resolve store", "ref", ref, "err", err)
				problems.Write(w, http.StatusInternalServerError, "internal", "Store lookup failed", "")
				return
			}
			p.Store = s
		}
		ctx := context.WithValue(r.Context(), ctxPrincipalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireStore rejects requests that did not select a store.
func requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principalFrom(r.Context()).Store.ID == "" {
			problems.Write(w, http.StatusBadRequest, "missing-store", "Missing store id", "Send X-Store-ID")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePlatform limits a handler to platform admins.
func requirePlatform(w http.ResponseWriter, r *http.Request) bool {
	if !principalFrom(r.Context()).platform() {
		problems.Write(w, http.StatusForbidden, "forbidden", "Platform admin required", "")
		return false
	}
	return true
}
