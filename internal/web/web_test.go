package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/medusa"
	"storefront/internal/medusa/medusatest"
	"storefront/internal/storefront"
	"storefront/pkg/middleware"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
)

type harness struct {
	t       *testing.T
	backend *medusatest.Backend
	srv     *httptest.Server
	client  *http.Client
}

// newHarness serves the storefront for a single store answering on the
// loopback host, with a cookie-keeping client that does not follow redirects.
func newHarness(t *testing.T) *harness {
	t.Helper()
	b := medusatest.New()
	t.Cleanup(b.Close)

	log := zap.NewNop().Sugar()
	st := stores.Store{
		ID: "store-1", Slug: "acme", Name: "Acme", Host: "localhost",
		MedusaURL: b.URL(), PublishableKey: medusatest.PublishableKey, DefaultCountry: "us",
	}
	svc := storefront.New(storefront.Deps{Clients: medusa.NewPool(5*time.Second, nil), Log: log})
	s, err := New(svc, Options{CookieName: "sid"})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.WithStore(stores.NewMemoryProvider(log, st)))
	r.Use(middleware.Session(sessions.NewMemoryStore(time.Hour), middleware.SessionOptions{
		CookieName: "sid", TTL: time.Hour, HashKey: []byte("test-hash-key"),
	}))
	r.Use(middleware.CustomerAuth())
	s.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		t: t, backend: b, srv: srv,
		client: &http.Client{Jar: jar, CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
	}
}

func (h *harness) do(method, path, contentType string, body io.Reader) (*http.Response, string) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(h.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, string(b)
}

func (h *harness) get(path string) (*http.Response, string) {
	return h.do(http.MethodGet, path, "", nil)
}

// post submits a form and returns the redirect target.
func (h *harness) post(path string, form url.Values) string {
	h.t.Helper()
	resp, _ := h.do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode, path)
	return resp.Header.Get("Location")
}

func (h *harness) postJSON(path string, v any) (*http.Response, string) {
	b, err := json.Marshal(v)
	require.NoError(h.t, err)
	return h.do(http.MethodPost, path, "application/json", strings.NewReader(string(b)))
}

func addressValues(prefix string) url.Values {
	return url.Values{
		prefix + "first_name":   {"Jane"},
		prefix + "last_name":    {"Doe"},
		prefix + "address_1":    {"1 Main St"},
		prefix + "city":         {"Springfield"},
		prefix + "country_code": {"US"},
		prefix + "postal_code":  {"12345"},
	}
}

func TestHomeAndListing(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get("/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/products/shirt")
	assert.Contains(t, body, "/products/mug")
	assert.Contains(t, body, "/collections/summer")
	assert.Contains(t, body, "United States", "country picker")

	_, body = h.get("/store?sort=price_asc")
	assert.Less(t, strings.Index(body, "/products/mug"), strings.Index(body, "/products/shirt"))
	_, body = h.get("/store?sort=price_desc")
	assert.Less(t, strings.Index(body, "/products/shirt"), strings.Index(body, "/products/mug"))

	_, body = h.get("/collections/summer")
	assert.Contains(t, body, "/products/mug")
	assert.NotContains(t, body, "/products/shirt")

	_, body = h.get("/categories/shirts")
	assert.Contains(t, body, "/products/shirt")
	assert.NotContains(t, body, "/products/mug")

	_, body = h.get("/search?q=mug")
	assert.Contains(t, body, "/products/mug")
	assert.NotContains(t, body, "/products/shirt")

	resp, _ = h.get("/search?q=")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/store", resp.Header.Get("Location"))

	resp, _ = h.get("/collections/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductPage(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get("/products/shirt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="variant_m"`, "first in-stock variant preselected")
	assert.Contains(t, body, "$25.00")
	assert.Contains(t, body, "Add to cart")

	_, body = h.get("/products/shirt?opt_size=S&opt_color=Black")
	assert.Contains(t, body, `value="variant_s"`)
	assert.Contains(t, body, "Out of stock")

	resp, _ = h.get("/products/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCartPages(t *testing.T) {
	h := newHarness(t)

	_, body := h.get("/cart")
	assert.Contains(t, body, "Your cart is empty")

	loc := h.post("/cart/items", url.Values{"variant_id": {"variant_m"}, "quantity": {"2"}})
	assert.Equal(t, "/cart", loc)

	_, body = h.get("/cart")
	assert.Contains(t, body, "Added to cart.")
	assert.Contains(t, body, "$50.00")
	assert.Contains(t, body, "Cart (2)")

	_, body = h.get("/cart")
	assert.NotContains(t, body, "Added to cart.", "toasts are shown once")

	h.post("/cart/items", url.Values{"variant_id": {"variant_m"}, "quantity": {"0"}})
	_, body = h.get("/cart")
	assert.Contains(t, body, "Quantity: Must be at least 1")

	h.post("/cart/items", url.Values{"variant_id": {"variant_s"}, "quantity": {"1"}})
	_, body = h.get("/cart")
	assert.Contains(t, body, `class="toast toast-error"`, "out of stock variant rejected upstream")

	h.post("/cart/promotions", url.Values{"code": {"BOGUS"}})
	_, body = h.get("/cart")
	assert.Contains(t, body, "That promotion code is not valid.")

	h.post("/cart/promotions", url.Values{"code": {"SAVE10"}})
	_, body = h.get("/cart")
	assert.Contains(t, body, "Promotion applied.")
	assert.Contains(t, body, "-$5.00")

	h.post("/cart/promotions/delete", url.Values{"code": {"SAVE10"}})
	_, body = h.get("/cart")
	assert.Contains(t, body, "Promotion removed.")
	assert.NotContains(t, body, "-$5.00")

	cart := h.apiCart()
	require.NotNil(t, cart.Cart)
	line := cart.Cart.Items[0].ID

	h.post("/cart/items/"+line, url.Values{"quantity": {"3"}})
	assert.Equal(t, 3, h.apiCart().ItemCount)

	h.post("/cart/items/"+line+"/delete", nil)
	assert.Equal(t, 0, h.apiCart().ItemCount)
}

func TestSetRegion(t *testing.T) {
	h := newHarness(t)

	loc := h.post("/region", url.Values{"country_code": {"de"}, "next": {"/products/shirt"}})
	assert.Equal(t, "/products/shirt", loc)
	_, body := h.get("/products/shirt")
	assert.Contains(t, body, "€22.00")

	loc = h.post("/region", url.Values{"country_code": {"us"}, "next": {"//evil.test/"}})
	assert.Equal(t, "/", loc, "only local redirects")

	h.post("/region", url.Values{"country_code": {"usa"}})
	_, body = h.get("/")
	assert.Contains(t, body, "Country code: Must be exactly 2 characters")
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get("/checkout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/cart", resp.Header.Get("Location"))

	h.post("/cart/items", url.Values{"variant_id": {"variant_m"}, "quantity": {"1"}})
	_, body := h.get("/checkout?step=review")
	assert.Contains(t, body, `action="/checkout/address"`, "review is not reachable yet")

	missing := addressValues("shipping_")
	missing.Del("shipping_city")
	missing.Set("email", "jane@example.com")
	missing.Set("same_as_billing", "on")
	assert.Equal(t, "/checkout?step=address", h.post("/checkout/address", missing))
	_, body = h.get("/checkout")
	assert.Contains(t, body, "Shipping city: This field is required")

	form := addressValues("shipping_")
	form.Set("email", "jane@example.com")
	form.Set("same_as_billing", "on")
	assert.Equal(t, "/checkout?step=delivery", h.post("/checkout/address", form))

	_, body = h.get("/checkout?step=delivery")
	assert.Contains(t, body, "so_standard")
	assert.Contains(t, body, "Express")

	assert.Equal(t, "/checkout?step=payment", h.post("/checkout/delivery", url.Values{"shipping_option_id": {"so_standard"}}))
	_, body = h.get("/checkout?step=payment")
	assert.Contains(t, body, "Manual payment")

	assert.Equal(t, "/checkout?step=review", h.post("/checkout/payment", url.Values{"provider_id": {medusa.ProviderSystemDefault}}))
	_, body = h.get("/checkout?step=review")
	assert.Contains(t, body, "Place order")
	assert.Contains(t, body, "$30.00")

	resp, body = h.get("/api/checkout/step")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"step":"review"`)

	loc := h.post("/checkout/place", nil)
	require.True(t, strings.HasPrefix(loc, "/order/confirmed/"), loc)

	resp, body = h.get(loc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Thank you!")
	assert.Contains(t, body, "jane@example.com")
	assert.Contains(t, body, "Springfield")

	_, body = h.get("/cart")
	assert.Contains(t, body, "Your cart is empty", "the completed cart leaves the session")
	resp, _ = h.get("/api/checkout/step")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckoutSeparateBilling(t *testing.T) {
	h := newHarness(t)
	h.post("/cart/items", url.Values{"variant_id": {"variant_m"}, "quantity": {"1"}})

	form := addressValues("shipping_")
	form.Set("email", "jane@example.com")
	for k, v := range addressValues("billing_") {
		form[k] = v
	}
	form.Set("billing_city", "Shelbyville")
	assert.Equal(t, "/checkout?step=delivery", h.post("/checkout/address", form))

	cart := h.apiCart()
	require.NotNil(t, cart.Cart.BillingAddress)
	assert.Equal(t, "Shelbyville", cart.Cart.BillingAddress.City)
	assert.Equal(t, "Springfield", cart.Cart.ShippingAddress.City)
	assert.Equal(t, "us", cart.Cart.ShippingAddress.CountryCode)
}

func TestAccountPages(t *testing.T) {
	h := newHarness(t)
	h.backend.AddCustomer("jane@example.com", "correct-horse")

	resp, _ := h.get("/account")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/account/login?next=%2Faccount", resp.Header.Get("Location"))

	loc := h.post("/account/login", url.Values{"email": {"jane@example.com"}, "password": {"wrong"}, "next": {"/account"}})
	assert.Equal(t, "/account/login?next=%2Faccount", loc)
	_, body := h.get(loc)
	assert.Contains(t, body, "Wrong email or password.")

	loc = h.post("/account/login", url.Values{"email": {"jane@example.com"}, "password": {"correct-horse"}, "next": {"/account/orders"}})
	assert.Equal(t, "/account/orders", loc)

	_, body = h.get("/account/orders")
	assert.Contains(t, body, "You have not placed any orders yet.")
	_, body = h.get("/account")
	assert.Contains(t, body, "Signed in as jane@example.com")

	resp, _ = h.get("/account/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode, "signed-in visitors skip the login page")

	h.post("/account/profile", url.Values{"first_name": {"Janet"}, "last_name": {"Doe"}})
	_, body = h.get("/account/profile")
	assert.Contains(t, body, "Profile updated.")
	assert.Contains(t, body, `value="Janet"`)

	h.post("/account/addresses", addressValues(""))
	_, body = h.get("/account/addresses")
	assert.Contains(t, body, "Address added.")
	assert.Contains(t, body, "Springfield")

	assert.Equal(t, "/", h.post("/account/logout", nil))
	resp, _ = h.get("/account/profile")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func (h *harness) sessionCookie() string {
	h.t.Helper()
	u, err := url.Parse(h.srv.URL)
	require.NoError(h.t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == "sid" {
			return c.Value
		}
	}
	return ""
}

func TestLoginRotatesSession(t *testing.T) {
	h := newHarness(t)
	h.backend.AddCustomer("jane@example.com", "correct-horse")

	h.post("/cart/items", url.Values{"variant_id": {"variant_m"}, "quantity": {"1"}})
	before := h.sessionCookie()
	require.NotEmpty(t, before)

	h.post("/account/login", url.Values{"email": {"jane@example.com"}, "password": {"correct-horse"}, "next": {"/account"}})
	after := h.sessionCookie()
	require.NotEmpty(t, after)
	assert.NotEqual(t, before, after)

	_, body := h.get("/cart")
	assert.NotContains(t, body, "Your cart is empty", "the cart follows the visitor into the new session")

	// a copy of the pre-login cookie is not signed in
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/account", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "sid", Value: before})
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	h.post("/account/logout", nil)
	assert.NotEqual(t, after, h.sessionCookie())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	loc := h.post("/account/register", url.Values{"email": {"new@example.com"}, "password": {"short"}, "first_name": {"N"}, "last_name": {"E"}})
	assert.Equal(t, loginPath, loc)
	_, body := h.get(loc)
	assert.Contains(t, body, "Password: Must be at least 8 characters")

	loc = h.post("/account/register", url.Values{"email": {"new@example.com"}, "password": {"long-enough"}, "first_name": {"New"}, "last_name": {"Person"}})
	assert.Equal(t, "/account", loc)
	_, body = h.get(loc)
	assert.Contains(t, body, "Your account has been created.")
	assert.Contains(t, body, "Signed in as new@example.com")
}

func (h *harness) apiCart() cartResponse {
	h.t.Helper()
	resp, body := h.get("/api/cart")
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	var out cartResponse
	require.NoError(h.t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestAPI(t *testing.T) {
	h := newHarness(t)

	c := h.apiCart()
	assert.Nil(t, c.Cart)
	assert.Equal(t, 0, c.ItemCount)

	resp, body := h.postJSON("/api/cart/items", map[string]any{"variant_id": "variant_m", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"item_count":2`)

	resp, body = h.postJSON("/api/cart/items", map[string]any{"variant_id": "variant_m", "quantity": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "Quantity: Must be at least 1")

	resp, _ = h.postJSON("/api/cart/items", map[string]any{"variant_id": "variant_s", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/api/cart/items", "application/json", strings.NewReader("{"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = h.get("/api/checkout/step?step=review")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"step":"address"`)

	resp, body = h.get("/api/openapi.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/cart")
	assert.Contains(t, paths, "/api/cart/items")
	assert.Contains(t, paths, "/api/checkout/step")
}

func postForm(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestBindForm(t *testing.T) {
	s, err := New(storefront.New(storefront.Deps{Clients: medusa.NewPool(time.Second, nil)}), Options{})
	require.NoError(t, err)

	var f loginForm
	require.NoError(t, s.bind(postForm(url.Values{"email": {"  a@b.test "}, "password": {" secret "}}), &f))
	assert.Equal(t, "a@b.test", f.Email)
	assert.Equal(t, " secret ", f.Password, "passwords are not trimmed")

	var q addItemForm
	err = s.bind(postForm(url.Values{"variant_id": {"v"}, "quantity": {"two"}}), &q)
	require.Error(t, err)
	assert.True(t, isValidation(err))
	assert.Equal(t, `"two" is not a number`, validationMessage(err))

	var c checkoutEmailForm
	require.NoError(t, s.bind(postForm(url.Values{"email": {"a@b.test"}, "same_as_billing": {"on"}}), &c))
	assert.True(t, c.SameAsBilling)

	var ship shippingAddressForm
	require.NoError(t, s.bind(postForm(addressValues("shipping_")), &ship))
	a := addressForm(ship)
	assert.Equal(t, "Springfield", a.City)
	assert.Equal(t, "us", a.address().CountryCode)

	var bill billingAddressForm
	err = s.bind(postForm(addressValues("shipping_")), &bill)
	require.Error(t, err)
	assert.Equal(t, "Billing first name: This field is required", validationMessage(err))

	a.PostalCode = ""
	err = s.validate.Struct(a)
	assert.Equal(t, "Postal code: This field is required", validationMessage(err))
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/account", "/account"},
		{"/products/shirt?opt_size=M", "/products/shirt?opt_size=M"},
		{"", "/fallback"},
		{"https://evil.test/", "/fallback"},
		{"//evil.test/", "/fallback"},
		{"/\\evil.test/", "/fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localPath(tt.in, "/fallback"), tt.in)
	}
}

func TestRenderDescription(t *testing.T) {
	got := string(renderDescription("**Soft** cotton.\n\n<script>alert(1)</script>\n\n[care](https://example.com/care)"))
	assert.Contains(t, got, "<strong>Soft</strong>")
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, `href="https://example.com/care"`)
	assert.Equal(t, "", string(renderDescription("")))
}
