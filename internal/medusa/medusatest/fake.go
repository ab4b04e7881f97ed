// Package medusatest provides an in-memory commerce backend speaking the
// subset of the Store API the storefront uses, for tests.
package medusatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/shopspring/decimal"

	"storefront/internal/medusa"
)

// PublishableKey is the key every request must carry.
const PublishableKey = "pk_test_fake"

// Backend is a stateful fake. Exported fields may be changed between requests
// while holding no lock only when no request is in flight.
type Backend struct {
	Server *httptest.Server

	Regions     []medusa.Region
	Products    []medusa.Product
	Collections []medusa.Collection
	Categories  []medusa.Category
	Shipping    []medusa.ShippingOption
	Providers   []medusa.PaymentProvider
	// Promotions maps a code to its percentage discount.
	Promotions map[string]int64
	// RefuseCompletion makes cart completion answer type=cart with this message.
	RefuseCompletion string

	mu        sync.Mutex
	seq       int
	carts     map[string]*medusa.Cart
	customers map[string]*medusa.Customer // by id
	passwords map[string]string           // email -> password
	tokens    map[string]string           // token -> email
	orders    map[string]*medusa.Order
	ownerOf   map[string]string // order id -> customer id
	calls     []string
}

// New starts a fake with one USD region (us, ca), one EUR region (de, fr) and
// a small catalog.
func New() *Backend {
	b := &Backend{
		Regions: []medusa.Region{
			{ID: "reg_us", Name: "North America", CurrencyCode: "usd", Countries: []medusa.Country{
				{ISO2: "us", DisplayName: "United States"}, {ISO2: "ca", DisplayName: "Canada"},
			}},
			{ID: "reg_eu", Name: "Europe", CurrencyCode: "eur", Countries: []medusa.Country{
				{ISO2: "de", DisplayName: "Germany"}, {ISO2: "fr", DisplayName: "France"},
			}},
		},
		Collections: []medusa.Collection{{ID: "pcol_summer", Title: "Summer", Handle: "summer"}},
		Categories:  []medusa.Category{{ID: "pcat_shirts", Name: "Shirts", Handle: "shirts"}},
		Shipping: []medusa.ShippingOption{
			{ID: "so_standard", Name: "Standard", Amount: decimal.NewFromInt(5), PriceType: "flat"},
			{ID: "so_express", Name: "Express", Amount: decimal.NewFromInt(15), PriceType: "flat"},
		},
		Providers:  []medusa.PaymentProvider{{ID: medusa.ProviderSystemDefault, IsEnabled: true}, {ID: "pp_stripe_stripe", IsEnabled: true}},
		Promotions: map[string]int64{"SAVE10": 10},
		carts:      map[string]*medusa.Cart{},
		customers:  map[string]*medusa.Customer{},
		passwords:  map[string]string{},
		tokens:     map[string]string{},
		orders:     map[string]*medusa.Order{},
		ownerOf:    map[string]string{},
	}
	b.Products = []medusa.Product{
		shirt(),
		{
			ID: "prod_mug", Title: "Mug", Handle: "mug", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			CollectionID: "pcol_summer",
			Options:      []medusa.ProductOption{{ID: "opt_default", Title: "Default", Values: []medusa.OptionValue{{ID: "ov_d", Value: "Default"}}}},
			Variants: []medusa.Variant{
				{ID: "variant_mug", Title: "Default", Options: []medusa.OptionValue{{ID: "ov_d", Value: "Default", OptionID: "opt_default"}}, ManageInventory: true, InventoryQuantity: 0},
			},
		},
	}
	b.Server = httptest.NewServer(b.routes())
	return b
}

func shirt() medusa.Product {
	opt := func(id, optID, v string) medusa.OptionValue { return medusa.OptionValue{ID: id, Value: v, OptionID: optID} }
	return medusa.Product{
		ID: "prod_shirt", Title: "Shirt", Handle: "shirt", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Categories: []medusa.Category{{ID: "pcat_shirts", Name: "Shirts", Handle: "shirts"}},
		Options: []medusa.ProductOption{
			{ID: "opt_size", Title: "Size", Values: []medusa.OptionValue{{ID: "ov_s", Value: "S"}, {ID: "ov_m", Value: "M"}}},
			{ID: "opt_color", Title: "Color", Values: []medusa.OptionValue{{ID: "ov_black", Value: "Black"}}},
		},
		Variants: []medusa.Variant{
			{ID: "variant_s", Title: "S / Black", Options: []medusa.OptionValue{opt("ov_s", "opt_size", "S"), opt("ov_black", "opt_color", "Black")}, ManageInventory: true, InventoryQuantity: 0},
			{ID: "variant_m", Title: "M / Black", Options: []medusa.OptionValue{opt("ov_m", "opt_size", "M"), opt("ov_black", "opt_color", "Black")}, ManageInventory: true, InventoryQuantity: 5},
		},
	}
}

// Prices in major units per currency, applied to variants by region.
var prices = map[string]map[string]decimal.Decimal{
	"variant_s":   {"usd": decimal.NewFromInt(20), "eur": decimal.NewFromInt(18)},
	"variant_m":   {"usd": decimal.NewFromInt(25), "eur": decimal.NewFromInt(22)},
	"variant_mug": {"usd": decimal.RequireFromString("9.5"), "eur": decimal.NewFromInt(9)},
}

func (b *Backend) Close() { b.Server.Close() }

// URL is the base URL to configure on a store.
func (b *Backend) URL() string { return b.Server.URL }

// Calls returns "METHOD /path" for every request served so far.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Cart returns a copy of a stored cart.
func (b *Backend) Cart(id string) (medusa.Cart, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[id]
	if !ok {
		return medusa.Cart{}, false
	}
	return *c, true
}

// AddCustomer registers a customer with a password and returns its id.
func (b *Backend) AddCustomer(email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID("cus")
	b.customers[id] = &medusa.Customer{ID: id, Email: email, FirstName: "Test", LastName: "Customer", CreatedAt: time.Now().UTC()}
	b.passwords[email] = password
	return id
}

// Token issues a customer token for email without the login call.
func (b *Backend) Token(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issue(email, time.Hour)
}

// ExpireCart marks a cart as completed out of band.
func (b *Backend) ExpireCart(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.carts[id]; ok {
		now := time.Now()
		c.CompletedAt = &now
	}
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

func (b *Backend) issue(email string, ttl time.Duration) string {
	tok := jwt.New()
	_ = tok.Set(jwt.ExpirationKey, time.Now().Add(ttl))
	_ = tok.Set("actor_id", b.customerIDByEmail(email))
	_ = tok.Set(jwt.JwtIDKey, b.nextID("jti"))
	signed, _ := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("fake-backend")))
	b.tokens[string(signed)] = email
	return string(signed)
}

func (b *Backend) customerIDByEmail(email string) string {
	for id, c := range b.customers {
		if c.Email == email {
			return id
		}
	}
	return ""
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, apiError{Type: typ, Message: msg})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			b.calls = append(b.calls, req.Method+" "+req.URL.Path)
			b.mu.Unlock()
			if req.Header.Get("x-publishable-api-key") != PublishableKey && !strings.HasPrefix(req.URL.Path, "/auth/") {
				fail(w, http.StatusBadRequest, "not_allowed", "Publishable API key required")
				return
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/store/regions", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"regions": b.Regions, "count": len(b.Regions)})
	})
	r.Get("/store/products", b.listProducts)
	r.Get("/store/collections", func(w http.ResponseWriter, req *http.Request) {
		out := []medusa.Collection{}
		for _, c := range b.Collections {
			if h := req.URL.Query().Get("handle"); h == "" || h == c.Handle {
				out = append(out, c)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"collections": out, "count": len(out)})
	})
	r.Get("/store/product-categories", func(w http.ResponseWriter, req *http.Request) {
		out := []medusa.Category{}
		for _, c := range b.Categories {
			if h := req.URL.Query().Get("handle"); h == "" || h == c.Handle {
				out = append(out, c)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"product_categories": out, "count": len(out)})
	})

	r.Post("/store/carts", b.createCart)
	r.Route("/store/carts/{id}", func(r chi.Router) {
		r.Get("/", b.withCart(func(w http.ResponseWriter, req *http.Request, c *medusa.Cart) { b.writeCart(w, c) }))
		r.Post("/", b.withCart(b.updateCart))
		r.Post("/line-items", b.withCart(b.addLineItem))
		r.Post("/line-items/{line}", b.withCart(b.updateLineItem))
		r.Delete("/line-items/{line}", b.withCart(b.deleteLineItem))
		r.Post("/promotions", b.withCart(b.addPromotions))
		r.Delete("/promotions", b.withCart(b.removePromotions))
		r.Post("/customer", b.withCart(b.transferCart))
		r.Post("/shipping-methods", b.withCart(b.addShippingMethod))
		r.Post("/complete", b.withCart(b.completeCart))
	})
	r.Get("/store/shipping-options", func(w http.ResponseWriter, req *http.Request) {
		if _, ok := b.carts[req.URL.Query().Get("cart_id")]; !ok {
			fail(w, http.StatusNotFound, "not_found", "Cart not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shipping_options": b.Shipping})
	})
	r.Get("/store/payment-providers", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"payment_providers": b.Providers})
	})
	r.Post("/store/payment-collections", b.createPaymentCollection)
	r.Post("/store/payment-collections/{id}/payment-sessions", b.initiateSession)

	r.Post("/auth/customer/emailpass", b.login)
	r.Post("/auth/customer/emailpass/register", b.register)
	r.Post("/store/customers", b.createCustomer)
	r.Route("/store/customers/me", func(r chi.Router) {
		r.Get("/", b.withCustomer(func(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
			writeJSON(w, http.StatusOK, map[string]any{"customer": c})
		}))
		r.Post("/", b.withCustomer(b.updateMe))
		r.Get("/addresses", b.withCustomer(func(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
			writeJSON(w, http.StatusOK, map[string]any{"addresses": c.Addresses, "count": len(c.Addresses)})
		}))
		r.Post("/addresses", b.withCustomer(b.addAddress))
		r.Post("/addresses/{addr}", b.withCustomer(b.updateAddress))
		r.Delete("/addresses/{addr}", b.withCustomer(b.deleteAddress))
	})
	r.Get("/store/orders", b.withCustomer(b.listOrders))
	r.Get("/store/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		o, ok := b.orders[chi.URLParam(req, "id")]
		if !ok {
			fail(w, http.StatusNotFound, "not_found", "Order not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": o})
	})
	return r
}

func (b *Backend) currency(regionID string) string {
	for _, r := range b.Regions {
		if r.ID == regionID {
			return r.CurrencyCode
		}
	}
	return "usd"
}

func (b *Backend) region(id string) *medusa.Region {
	for i := range b.Regions {
		if b.Regions[i].ID == id {
			r := b.Regions[i]
			return &r
		}
	}
	return nil
}

func (b *Backend) priced(p medusa.Product, regionID string) medusa.Product {
	cur := b.currency(regionID)
	vs := make([]medusa.Variant, len(p.Variants))
	for i, v := range p.Variants {
		if amt, ok := prices[v.ID][cur]; ok && regionID != "" {
			v.CalculatedPrice = &medusa.CalculatedPrice{CalculatedAmount: amt, OriginalAmount: amt, CurrencyCode: cur}
		}
		vs[i] = v
	}
	p.Variants = vs
	return p
}

func (b *Backend) listProducts(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	var out []medusa.Product
	for _, p := range b.Products {
		if h := q.Get("handle"); h != "" && h != p.Handle {
			continue
		}
		if ids := q["collection_id[]"]; len(ids) > 0 && !contains(ids, p.CollectionID) {
			continue
		}
		if ids := q["category_id[]"]; len(ids) > 0 && !inCategories(ids, p.Categories) {
			continue
		}
		if s := q.Get("q"); s != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(s)) {
			continue
		}
		out = append(out, b.priced(p, q.Get("region_id")))
	}
	if q.Get("order") == "-created_at" {
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				if out[j].CreatedAt.After(out[i].CreatedAt) {
					out[i], out[j] = out[j], out[i]
				}
			}
		}
	}
	count := len(out)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []medusa.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out, "count": count, "offset": offset, "limit": limit})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func inCategories(ids []string, cats []medusa.Category) bool {
	for _, c := range cats {
		if contains(ids, c.ID) {
			return true
		}
	}
	return false
}

func (b *Backend) createCart(w http.ResponseWriter, req *http.Request) {
	var in struct {
		RegionID string `json:"region_id"`
	}
	_ = decode(req, &in)
	reg := b.region(in.RegionID)
	if reg == nil {
		fail(w, http.StatusBadRequest, "invalid_data", "Region not found")
		return
	}
	c := &medusa.Cart{ID: b.nextID("cart"), RegionID: reg.ID, Region: reg, CurrencyCode: reg.CurrencyCode, Items: []medusa.LineItem{}}
	b.carts[c.ID] = c
	b.writeCart(w, c)
}

func (b *Backend) withCart(h func(http.ResponseWriter, *http.Request, *medusa.Cart)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c, ok := b.carts[chi.URLParam(req, "id")]
		if !ok {
			fail(w, http.StatusNotFound, "not_found", "Cart with id "+chi.URLParam(req, "id")+" was not found")
			return
		}
		h(w, req, c)
	}
}

func (b *Backend) recalc(c *medusa.Cart) {
	sub := decimal.Zero
	for i := range c.Items {
		li := &c.Items[i]
		li.Subtotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
		li.Total = li.Subtotal
		sub = sub.Add(li.Subtotal)
	}
	disc := decimal.Zero
	for _, p := range c.Promotions {
		if p.ApplicationMethod != nil {
			disc = disc.Add(sub.Mul(p.ApplicationMethod.Value).Div(decimal.NewFromInt(100)))
		}
	}
	ship := decimal.Zero
	for _, m := range c.ShippingMethods {
		ship = ship.Add(m.Amount)
	}
	c.ItemSubtotal = sub
	c.Subtotal = sub
	c.DiscountTotal = disc
	c.ShippingTotal = ship
	c.Total = sub.Sub(disc).Add(ship)
	if c.PaymentCollection != nil {
		c.PaymentCollection.Amount = c.Total
		for i := range c.PaymentCollection.PaymentSessions {
			c.PaymentCollection.PaymentSessions[i].Amount = c.Total
		}
	}
}

func (b *Backend) writeCart(w http.ResponseWriter, c *medusa.Cart) {
	b.recalc(c)
	writeJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (b *Backend) updateCart(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in medusa.CartUpdate
	if err := decode(req, &in); err != nil {
		fail(w, http.StatusBadRequest, "invalid_data", err.Error())
		return
	}
	if in.RegionID != "" {
		reg := b.region(in.RegionID)
		if reg == nil {
			fail(w, http.StatusBadRequest, "invalid_data", "Region not found")
			return
		}
		c.RegionID, c.Region, c.CurrencyCode = reg.ID, reg, reg.CurrencyCode
		for i := range c.Items {
			c.Items[i].UnitPrice = prices[c.Items[i].VariantID][reg.CurrencyCode]
		}
		c.ShippingMethods = nil
	}
	if in.Email != "" {
		c.Email = in.Email
	}
	if in.ShippingAddress != nil {
		c.ShippingAddress = in.ShippingAddress
	}
	if in.BillingAddress != nil {
		c.BillingAddress = in.BillingAddress
	}
	b.writeCart(w, c)
}

func (b *Backend) variant(id string) (medusa.Product, medusa.Variant, bool) {
	for _, p := range b.Products {
		for _, v := range p.Variants {
			if v.ID == id {
				return p, v, true
			}
		}
	}
	return medusa.Product{}, medusa.Variant{}, false
}

func (b *Backend) addLineItem(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in struct {
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	}
	_ = decode(req, &in)
	p, v, ok := b.variant(in.VariantID)
	if !ok {
		fail(w, http.StatusNotFound, "not_found", "Variant "+in.VariantID+" not found")
		return
	}
	if !v.InStock() {
		fail(w, http.StatusBadRequest, "not_allowed", "Variant "+v.ID+" does not have the required inventory")
		return
	}
	for i := range c.Items {
		if c.Items[i].VariantID == v.ID {
			c.Items[i].Quantity += in.Quantity
			b.writeCart(w, c)
			return
		}
	}
	c.Items = append(c.Items, medusa.LineItem{
		ID: b.nextID("item"), Title: p.Title, Subtitle: v.Title, VariantID: v.ID, ProductID: p.ID,
		ProductHandle: p.Handle, VariantTitle: v.Title, Quantity: in.Quantity, UnitPrice: prices[v.ID][c.CurrencyCode],
	})
	b.writeCart(w, c)
}

func (b *Backend) lineIndex(c *medusa.Cart, id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) updateLineItem(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	_ = decode(req, &in)
	i := b.lineIndex(c, chi.URLParam(req, "line"))
	if i < 0 {
		fail(w, http.StatusNotFound, "not_found", "Line item not found")
		return
	}
	c.Items[i].Quantity = in.Quantity
	b.writeCart(w, c)
}

func (b *Backend) deleteLineItem(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	i := b.lineIndex(c, chi.URLParam(req, "line"))
	if i < 0 {
		fail(w, http.StatusNotFound, "not_found", "Line item not found")
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	b.recalc(c)
	writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(req, "line"), "object": "line-item", "deleted": true, "parent": c})
}

func (b *Backend) addPromotions(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in struct {
		Codes []string `json:"promo_codes"`
	}
	_ = decode(req, &in)
	for _, code := range in.Codes {
		pct, ok := b.Promotions[code]
		if !ok || c.HasPromotion(code) {
			continue // unknown codes are ignored upstream
		}
		c.Promotions = append(c.Promotions, medusa.Promotion{
			ID: b.nextID("promo"), Code: code,
			ApplicationMethod: &medusa.ApplicationMethod{Type: "percentage", Value: decimal.NewFromInt(pct)},
		})
	}
	b.writeCart(w, c)
}

func (b *Backend) removePromotions(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in struct {
		Codes []string `json:"promo_codes"`
	}
	_ = decode(req, &in)
	kept := c.Promotions[:0]
	for _, p := range c.Promotions {
		if !contains(in.Codes, p.Code) {
			kept = append(kept, p)
		}
	}
	c.Promotions = kept
	b.writeCart(w, c)
}

func (b *Backend) bearer(req *http.Request) (string, bool) {
	h := req.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	email, ok := b.tokens[strings.TrimPrefix(h, "Bearer ")]
	return email, ok
}

func (b *Backend) transferCart(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	email, ok := b.bearer(req)
	if !ok {
		fail(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	c.CustomerID = b.customerIDByEmail(email)
	c.Email = email
	b.writeCart(w, c)
}

func (b *Backend) addShippingMethod(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	var in struct {
		OptionID string `json:"option_id"`
	}
	_ = decode(req, &in)
	for _, so := range b.Shipping {
		if so.ID == in.OptionID {
			c.ShippingMethods = []medusa.ShippingMethod{{ID: b.nextID("sm"), ShippingOptionID: so.ID, Name: so.Name, Amount: so.Amount}}
			b.writeCart(w, c)
			return
		}
	}
	fail(w, http.StatusBadRequest, "invalid_data", "Shipping option "+in.OptionID+" is not valid for the cart")
}

func (b *Backend) createPaymentCollection(w http.ResponseWriter, req *http.Request) {
	var in struct {
		CartID string `json:"cart_id"`
	}
	_ = decode(req, &in)
	c, ok := b.carts[in.CartID]
	if !ok {
		fail(w, http.StatusNotFound, "not_found", "Cart not found")
		return
	}
	if c.PaymentCollection == nil {
		c.PaymentCollection = &medusa.PaymentCollection{ID: b.nextID("pay_col"), Status: "not_paid", PaymentSessions: []medusa.PaymentSession{}}
	}
	b.recalc(c)
	writeJSON(w, http.StatusOK, map[string]any{"payment_collection": c.PaymentCollection})
}

func (b *Backend) initiateSession(w http.ResponseWriter, req *http.Request) {
	var in struct {
		ProviderID string `json:"provider_id"`
	}
	_ = decode(req, &in)
	id := chi.URLParam(req, "id")
	for _, c := range b.carts {
		pc := c.PaymentCollection
		if pc == nil || pc.ID != id {
			continue
		}
		ps := medusa.PaymentSession{ID: b.nextID("payses"), ProviderID: in.ProviderID, Status: medusa.SessionPending, Data: map[string]any{}}
		if strings.HasPrefix(in.ProviderID, medusa.ProviderStripePrefix) {
			pi := b.nextID("pi")
			ps.Data = map[string]any{"id": pi, "client_secret": pi + "_secret_test"}
		}
		pc.PaymentSessions = []medusa.PaymentSession{ps}
		b.recalc(c)
		writeJSON(w, http.StatusOK, map[string]any{"payment_collection": pc})
		return
	}
	fail(w, http.StatusNotFound, "not_found", "Payment collection not found")
}

func (b *Backend) completeCart(w http.ResponseWriter, req *http.Request, c *medusa.Cart) {
	if b.RefuseCompletion != "" {
		b.recalc(c)
		writeJSON(w, http.StatusOK, map[string]any{"type": "cart", "cart": c, "error": apiError{Type: "payment_authorization_error", Message: b.RefuseCompletion}})
		return
	}
	if c.CompletedAt != nil {
		fail(w, http.StatusBadRequest, "invalid_data", "Cart is already completed")
		return
	}
	b.recalc(c)
	now := time.Now().UTC()
	c.CompletedAt = &now
	o := &medusa.Order{
		ID: b.nextID("order"), DisplayID: b.seq, Email: c.Email, Status: "pending", PaymentStatus: "authorized",
		FulfillmentStatus: "not_fulfilled", CurrencyCode: c.CurrencyCode, Items: c.Items,
		ShippingAddress: c.ShippingAddress, BillingAddress: c.BillingAddress, ShippingMethods: c.ShippingMethods,
		ItemSubtotal: c.ItemSubtotal, Subtotal: c.Subtotal, DiscountTotal: c.DiscountTotal, ShippingTotal: c.ShippingTotal,
		TaxTotal: c.TaxTotal, Total: c.Total, CreatedAt: now,
	}
	b.orders[o.ID] = o
	if c.CustomerID != "" {
		b.ownerOf[o.ID] = c.CustomerID
	}
	writeJSON(w, http.StatusOK, map[string]any{"type": "order", "order": o})
}

func (b *Backend) login(w http.ResponseWriter, req *http.Request) {
	var in struct{ Email, Password string }
	_ = decode(req, &in)
	if pw, ok := b.passwords[in.Email]; !ok || pw != in.Password {
		fail(w, http.StatusUnauthorized, "unauthorized", "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": b.issue(in.Email, time.Hour)})
}

func (b *Backend) register(w http.ResponseWriter, req *http.Request) {
	var in struct{ Email, Password string }
	_ = decode(req, &in)
	if _, ok := b.passwords[in.Email]; ok {
		fail(w, http.StatusUnauthorized, "unauthorized", "Identity with email already exists")
		return
	}
	b.passwords[in.Email] = in.Password
	writeJSON(w, http.StatusOK, map[string]any{"token": b.issue(in.Email, time.Hour)})
}

func (b *Backend) createCustomer(w http.ResponseWriter, req *http.Request) {
	email, ok := b.bearer(req)
	if !ok {
		fail(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	var in medusa.CustomerCreate
	_ = decode(req, &in)
	if in.Email != email {
		fail(w, http.StatusBadRequest, "invalid_data", "Email does not match the registration")
		return
	}
	id := b.nextID("cus")
	c := &medusa.Customer{ID: id, Email: email, FirstName: in.FirstName, LastName: in.LastName, Phone: in.Phone, CreatedAt: time.Now().UTC()}
	b.customers[id] = c
	writeJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (b *Backend) withCustomer(h func(http.ResponseWriter, *http.Request, *medusa.Customer)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		email, ok := b.bearer(req)
		if !ok {
			fail(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		c, ok := b.customers[b.customerIDByEmail(email)]
		if !ok {
			fail(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		h(w, req, c)
	}
}

func (b *Backend) updateMe(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
	var in medusa.CustomerUpdate
	_ = decode(req, &in)
	if in.FirstName != "" {
		c.FirstName = in.FirstName
	}
	if in.LastName != "" {
		c.LastName = in.LastName
	}
	if in.Phone != "" {
		c.Phone = in.Phone
	}
	if in.CompanyName != "" {
		c.CompanyName = in.CompanyName
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (b *Backend) addAddress(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
	var a medusa.Address
	_ = decode(req, &a)
	a.ID = b.nextID("caddr")
	c.Addresses = append(c.Addresses, a)
	writeJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (b *Backend) addressIndex(c *medusa.Customer, id string) int {
	for i := range c.Addresses {
		if c.Addresses[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) updateAddress(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
	i := b.addressIndex(c, chi.URLParam(req, "addr"))
	if i < 0 {
		fail(w, http.StatusNotFound, "not_found", "Address not found")
		return
	}
	var a medusa.Address
	_ = decode(req, &a)
	a.ID = c.Addresses[i].ID
	c.Addresses[i] = a
	writeJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (b *Backend) deleteAddress(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
	i := b.addressIndex(c, chi.URLParam(req, "addr"))
	if i < 0 {
		fail(w, http.StatusNotFound, "not_found", "Address not found")
		return
	}
	c.Addresses = append(c.Addresses[:i], c.Addresses[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(req, "addr"), "deleted": true})
}

func (b *Backend) listOrders(w http.ResponseWriter, req *http.Request, c *medusa.Customer) {
	out := []medusa.Order{}
	for id, o := range b.orders {
		if b.ownerOf[id] == c.ID {
			out = append(out, *o)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out, "count": len(out)})
}
