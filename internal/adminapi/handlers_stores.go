package adminapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/pkg/db"
	"storefront/pkg/problems"
	"storefront/pkg/stores"
)

// storeView is the admin representation of a store. Secrets never leave the process.
type storeView struct {
	ID                   string `json:"id"`
	Slug                 string `json:"slug"`
	Host                 string `json:"host"`
	Name                 string `json:"name"`
	BasePublicURL        string `json:"base_public_url"`
	MedusaURL            string `json:"medusa_url"`
	PublishableKey       string `json:"publishable_key"`
	DefaultCountry       string `json:"default_country"`
	StripePublishableKey string `json:"stripe_publishable_key"`
	HasStripeSecret      bool   `json:"has_stripe_secret"`
}

func viewOf(s stores.Store) storeView {
	return storeView{
		ID: s.ID, Slug: s.Slug, Host: s.Host, Name: s.Name, BasePublicURL: s.BasePublicURL,
		MedusaURL: s.MedusaURL, PublishableKey: s.PublishableKey, DefaultCountry: s.DefaultCountry,
		StripePublishableKey: s.StripePublishableKey, HasStripeSecret: s.HasStripe(),
	}
}

// storeBody is the PUT /admin/stores/self payload. Empty fields keep the current value.
type storeBody struct {
	Name                 string `json:"name" validate:"omitempty,max=120"`
	BasePublicURL        string `json:"base_public_url" validate:"omitempty,url"`
	MedusaURL            string `json:"medusa_url" validate:"omitempty,url"`
	PublishableKey       string `json:"publishable_key" validate:"omitempty,max=200"`
	DefaultCountry       string `json:"default_country" validate:"omitempty,len=2,alpha"`
	StripePublishableKey string `json:"stripe_publishable_key" validate:"omitempty,startswith=pk_"`
	StripeSecretKey      string `json:"stripe_secret_key" validate:"omitempty,startswith=sk_"`
}

func (b storeBody) apply(s stores.Store) stores.Store {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&s.Name, b.Name)
	set(&s.BasePublicURL, b.BasePublicURL)
	set(&s.MedusaURL, b.MedusaURL)
	set(&s.PublishableKey, b.PublishableKey)
	set(&s.DefaultCountry, b.DefaultCountry)
	set(&s.StripePublishableKey, b.StripePublishableKey)
	// only a new secret is re-encrypted; the stored one is kept otherwise
	s.StripeSecretKey = strings.TrimSpace(b.StripeSecretKey)
	return s.Normalize()
}

func (a *App) listStores(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if !p.platform() {
		writeJSON(w, map[string]any{"items": []storeView{viewOf(p.Store)}}, http.StatusOK)
		return
	}
	list, err := a.stores.ListStores(r.Context())
	if err != nil {
		a.log.Errorw("list stores", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Could not list stores", "")
		return
	}
	out := make([]storeView, 0, len(list))
	for _, s := range list {
		out = append(out, viewOf(s))
	}
	writeJSON(w, map[string]any{"items": out}, http.StatusOK)
}

func (a *App) getStoreSelf(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, viewOf(principalFrom(r.Context()).Store), http.StatusOK)
}

func (a *App) putStoreSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := principalFrom(ctx).Store

	var b storeBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&b); err != nil {
		problems.Write(w, http.StatusBadRequest, "invalid-body", "Bad JSON", err.Error())
		return
	}
	if err := a.validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			problems.Write(w, http.StatusUnprocessableEntity, "validation", "Invalid store settings", strings.Join(fields, ", "))
			return
		}
		problems.Write(w, http.StatusBadRequest, "invalid-body", "Invalid store settings", err.Error())
		return
	}
	if a.db == nil {
		problems.Write(w, http.StatusServiceUnavailable, "read-only", "Store settings are read-only", "No database configured")
		return
	}

	next := b.apply(current)
	tx, err := db.BeginTxWithStore(ctx, a.db, current.ID)
	if err != nil {
		a.log.Errorw("begin store update", "store", current.ID, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := stores.Upsert(ctx, tx, next, a.encrypterKey); err != nil {
		a.log.Errorw("update store", "store", current.ID, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		a.log.Errorw("commit store update", "store", current.ID, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
		return
	}
	a.log.Infow("store updated", "store", current.ID, "by", principalFrom(ctx).Subject, "secret_rotated", next.StripeSecretKey != "")

	view := viewOf(next)
	view.HasStripeSecret = current.HasStripe() || next.HasStripe()
	writeJSON(w, view, http.StatusOK)
}

func (a *App) importStores(w http.ResponseWriter, r *http.Request) {
	if !requirePlatform(w, r) {
		return
	}
	if a.db == nil {
		problems.Write(w, http.StatusServiceUnavailable, "read-only", "Store registry is read-only", "No database configured")
		return
	}
	if a.registryDir == "" {
		problems.Write(w, http.StatusBadRequest, "no-registry", "No registry directory configured", "Set STORE_REGISTRY_DIR")
		return
	}
	n, err := a.importDir(r.Context())
	if err != nil {
		a.log.Errorw("store import", "dir", a.registryDir, "err", err)
		problems.Write(w, http.StatusUnprocessableEntity, "import-failed", "Import failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "imported": n}, http.StatusOK)
}
