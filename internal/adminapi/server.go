package adminapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	allowed := a.origins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3001"}
	}

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(cors(allowed))
		ar.Use(a.adminAuth)
		ar.Get("/stores", a.listStores)
		ar.Post("/stores/import", a.importStores)
		ar.Group(func(sr chi.Router) {
			sr.Use(requireStore)
			sr.Get("/stores/self", a.getStoreSelf)
			sr.Put("/stores/self", a.putStoreSelf)
			sr.Get("/usage/summary", a.getUsageSummary)
			sr.Get("/usage/recent", a.getUsageRecent)
		})
	})

	return r
}
