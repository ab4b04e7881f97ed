package adminapi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/pkg/stores"
)

const (
	acmeID = "6f1d3c2a-0b7e-4c55-9a51-2f0d8e1b7a01"
	betaID = "6f1d3c2a-0b7e-4c55-9a51-2f0d8e1b7a02"
)

func testProvider() stores.Provider {
	return stores.NewMemoryProvider(zap.NewNop().Sugar(),
		stores.Store{ID: acmeID, Slug: "acme", Host: "shop.acme.test", MedusaURL: "http://medusa.acme:9000/",
			PublishableKey: "pk_acme", DefaultCountry: "US", StripeSecretKey: "sk_test_acme"},
		stores.Store{ID: betaID, Slug: "beta", Host: "beta.test", MedusaURL: "http://medusa.beta:9000"},
	)
}

func newApp(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	app, err := New(context.Background(), zap.NewNop().Sugar(), nil, testProvider(), cfg)
	require.NoError(t, err)
	return app.Handler()
}

func call(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newApp(t, Config{})
	rec := call(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestDevHeaderSelectsStore(t *testing.T) {
	h := newApp(t, Config{})

	for _, ref := range []string{acmeID, "acme", "shop.acme.test"} {
		rec := call(t, h, http.MethodGet, "/admin/stores/self", "", map[string]string{"X-Store-ID": ref})
		require.Equal(t, http.StatusOK, rec.Code, ref)
		body := decode(t, rec)
		assert.Equal(t, acmeID, body["id"])
		assert.Equal(t, "http://medusa.acme:9000", body["medusa_url"])
		assert.Equal(t, "us", body["default_country"])
		assert.Equal(t, true, body["has_stripe_secret"])
		assert.NotContains(t, rec.Body.String(), "sk_test_acme")
	}

	rec := call(t, h, http.MethodGet, "/admin/stores/self", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = call(t, h, http.MethodGet, "/admin/stores/self", "", map[string]string{"X-Store-ID": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStores(t *testing.T) {
	h := newApp(t, Config{})
	rec := call(t, h, http.MethodGet, "/admin/stores", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "acme", items[0].(map[string]any)["slug"])
	assert.Equal(t, "beta", items[1].(map[string]any)["slug"])
}

func TestPutStoreSelf(t *testing.T) {
	h := newApp(t, Config{})
	hdr := map[string]string{"X-Store-ID": "acme", "Content-Type": "application/json"}

	rec := call(t, h, http.MethodPut, "/admin/stores/self", `{"default_country":"usa"}`, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "DefaultCountry")

	rec = call(t, h, http.MethodPut, "/admin/stores/self", `{"stripe_secret_key":"pk_wrong"}`, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h, http.MethodPut, "/admin/stores/self", `{`, hdr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// valid body, but nothing to persist to
	rec = call(t, h, http.MethodPut, "/admin/stores/self", `{"default_country":"de"}`, hdr)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreBodyApply(t *testing.T) {
	cur := stores.Store{ID: acmeID, Slug: "acme", Name: "Acme", MedusaURL: "http://old", DefaultCountry: "us", StripeSecretKey: "sk_old"}
	next := storeBody{MedusaURL: "http://new/", DefaultCountry: " DE "}.apply(cur)
	assert.Equal(t, "Acme", next.Name)
	assert.Equal(t, "http://new", next.MedusaURL)
	assert.Equal(t, "de", next.DefaultCountry)
	assert.Empty(t, next.StripeSecretKey)

	next = storeBody{StripeSecretKey: "sk_new"}.apply(cur)
	assert.Equal(t, "sk_new", next.StripeSecretKey)
}

func TestUsageWithoutDatabase(t *testing.T) {
	h := newApp(t, Config{})
	for _, p := range []string{"/admin/usage/summary", "/admin/usage/recent"} {
		rec := call(t, h, http.MethodGet, p, "", map[string]string{"X-Store-ID": "beta"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, p)
	}
	rec := call(t, h, http.MethodPost, "/admin/stores/import", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 50, parseLimit("", 50, 500))
	assert.Equal(t, 10, parseLimit("10", 50, 500))
	assert.Equal(t, 50, parseLimit("501", 50, 500))
	assert.Equal(t, 50, parseLimit("-3", 50, 500))
}

func TestCORS(t *testing.T) {
	h := newApp(t, Config{AllowedOrigins: []string{"https://admin.test"}})

	rec := call(t, h, http.MethodOptions, "/admin/stores", "", map[string]string{"Origin": "https://admin.test"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Store-ID")

	rec = call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type signer struct {
	key jwk.Key
	set jwk.Set
}

func newSigner(t *testing.T) signer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "admin-1"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "admin-1"))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return signer{key: key, set: set}
}

func (s signer) token(t *testing.T, aud string, claims map[string]any) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("https://idp.test").
		Audience([]string{aud}).
		Subject("ops@acme.test").
		Expiration(time.Now().Add(time.Hour))
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, s.key))
	require.NoError(t, err)
	return "Bearer " + string(signed)
}

func TestBearerAuth(t *testing.T) {
	s := newSigner(t)
	h := newApp(t, Config{JWKS: s.set, OIDCIssuer: "https://idp.test", OIDCAudience: "storefront-admin"})

	rec := call(t, h, http.MethodGet, "/admin/stores", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := s.token(t, "someone-else", map[string]any{"role": RolePlatformAdmin})
	rec = call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"Authorization": bad})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer := s.token(t, "storefront-admin", map[string]any{"role": "viewer"})
	rec = call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"Authorization": viewer})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	unpinned := s.token(t, "storefront-admin", map[string]any{"role": RoleStoreAdmin})
	rec = call(t, h, http.MethodGet, "/admin/stores/self", "", map[string]string{"Authorization": unpinned})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	storeAdmin := s.token(t, "storefront-admin", map[string]any{"role": RoleStoreAdmin, "store_id": betaID})
	// the header cannot move a store admin to another store
	rec = call(t, h, http.MethodGet, "/admin/stores/self", "", map[string]string{"Authorization": storeAdmin, "X-Store-ID": "acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, betaID, decode(t, rec)["id"])

	rec = call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"Authorization": storeAdmin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = call(t, h, http.MethodPost, "/admin/stores/import", "", map[string]string{"Authorization": storeAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	platform := s.token(t, "storefront-admin", map[string]any{"role": RolePlatformAdmin})
	rec = call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"Authorization": platform})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = call(t, h, http.MethodGet, "/admin/stores/self", "", map[string]string{"Authorization": platform, "X-Store-ID": "acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acmeID, decode(t, rec)["id"])
}

func TestProdRequiresKeys(t *testing.T) {
	_, err := New(context.Background(), zap.NewNop().Sugar(), nil, testProvider(), Config{Env: "prod"})
	assert.ErrorIs(t, err, ErrNoAdminKeys)

	s := newSigner(t)
	h := newApp(t, Config{Env: "prod", JWKS: s.set, OIDCIssuer: "https://idp.test", OIDCAudience: "storefront-admin"})
	rec := call(t, h, http.MethodGet, "/admin/stores", "", map[string]string{"X-Store-ID": "acme"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "the store header alone is not trusted")
}
