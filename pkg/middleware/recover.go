package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"storefront/pkg/problems"
)

// Recover turns a handler panic into a 500. JSON API callers get a problem
// body; shoppers get a plain page since the template layer may be what broke.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Errorw("panic", "err", rec, "method", r.Method, "path", r.URL.Path,
					"store", StoreFrom(r.Context()).Slug, "request_id", RequestIDFrom(r.Context()),
					"stack", string(debug.Stack()))
				if strings.HasPrefix(r.URL.Path, "/api/") {
					problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
					return
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`<!doctype html><title>Error</title><h1>Something went wrong</h1><p><a href="/">Back to the shop</a></p>`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
