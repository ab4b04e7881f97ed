package medusa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/stores"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recordingObserver) ObserveCall(_ context.Context, c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	return NewClient(Options{BaseURL: srv.URL + "/", PublishableKey: "pk_test", StoreID: "store-1", Observer: obs}), obs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SendsHeaders(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_test", r.Header.Get("x-publishable-api-key"))
		assert.Equal(t, "Bearer tok_123", r.Header.Get("Authorization"))
		assert.Equal(t, "/store/customers/me", r.URL.Path)
		writeJSON(w, 200, map[string]any{"customer": map[string]any{"id": "cus_1", "email": "a@b.test"}})
	})

	ctx := WithCustomerToken(context.Background(), "tok_123")
	cus, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cus.ID)

	require.Len(t, obs.calls, 1)
	assert.Equal(t, "customers.me", obs.calls[0].Operation)
	assert.Equal(t, 200, obs.calls[0].Status)
	assert.Equal(t, "store-1", obs.calls[0].StoreID)
}

func TestClient_NoAuthorizationWithoutToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]any{"regions": []any{}})
	})
	_, err := c.ListRegions(context.Background())
	require.NoError(t, err)
}

func TestClient_DecodesErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		check       func(error) bool
	}{
		{"not found json", 404, `{"type":"not_found","message":"Cart id not found"}`, "Cart id not found", IsNotFound},
		{"unauthorized", 401, `{"type":"unauthorized","message":"Unauthorized"}`, "Unauthorized", IsUnauthorized},
		{"invalid", 400, `{"type":"invalid_data","message":"quantity must be positive"}`, "quantity must be positive", IsInvalid},
		{"plain text body", 502, `bad gateway`, "bad gateway", func(error) bool { return true }},
		{"empty body", 500, ``, "Internal Server Error", func(error) bool { return true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Cart(context.Background(), "cart_1")
			require.Error(t, err)
			var me *Error
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.status, me.Status)
			assert.Equal(t, tt.wantMessage, me.Message)
			assert.Equal(t, tt.wantMessage, Message(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClient_RejectsOversizedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseSize+10)))
	})
	_, err := c.ListRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestClient_ListProductsQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/store/products", r.URL.Path)
		assert.Equal(t, "12", q.Get("limit"))
		assert.Equal(t, "24", q.Get("offset"))
		assert.Equal(t, "reg_1", q.Get("region_id"))
		assert.Equal(t, []string{"pcol_1"}, q["collection_id[]"])
		assert.Equal(t, "shirt", q.Get("q"))
		assert.Equal(t, "-created_at", q.Get("order"))
		assert.Contains(t, q.Get("fields"), "calculated_price")
		writeJSON(w, 200, map[string]any{
			"count": 30, "offset": 24, "limit": 12,
			"products": []any{map[string]any{
				"id": "prod_1", "handle": "shirt", "title": "Shirt",
				"variants": []any{map[string]any{
					"id": "variant_1", "calculated_price": map[string]any{"calculated_amount": 19.5, "original_amount": 25, "currency_code": "usd"},
				}},
			}},
		})
	})
	list, err := c.ListProducts(context.Background(), ProductQuery{
		Limit: 12, Offset: 24, RegionID: "reg_1", CollectionIDs: []string{"pcol_1"}, Q: "shirt", Order: "-created_at",
	})
	require.NoError(t, err)
	assert.Equal(t, 30, list.Count)
	require.Len(t, list.Products, 1)
	price := list.Products[0].Variants[0].CalculatedPrice
	require.NotNil(t, price)
	assert.True(t, price.CalculatedAmount.Equal(decimal.RequireFromString("19.5")))
}

func TestClient_ProductByHandleNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"products": []any{}, "count": 0})
	})
	_, err := c.ProductByHandle(context.Background(), "ghost", "reg_1")
	assert.True(t, IsNotFound(err))
}

func TestClient_CartLifecycle(t *testing.T) {
	var gotBodies []map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBodies = append(gotBodies, body)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/store/carts":
			writeJSON(w, 200, map[string]any{"cart": map[string]any{"id": "cart_1", "region_id": body["region_id"]}})
		case r.Method == http.MethodPost && r.URL.Path == "/store/carts/cart_1/line-items":
			writeJSON(w, 200, map[string]any{"cart": map[string]any{"id": "cart_1", "items": []any{map[string]any{"id": "li_1", "quantity": body["quantity"]}}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/store/carts/cart_1/line-items/li_1":
			writeJSON(w, 200, map[string]any{"id": "li_1", "deleted": true, "parent": map[string]any{"id": "cart_1", "items": []any{}}})
		case r.Method == http.MethodPost && r.URL.Path == "/store/carts/cart_1/complete":
			writeJSON(w, 200, map[string]any{"type": "order", "order": map[string]any{"id": "order_1", "display_id": 7}})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(500)
		}
	})
	ctx := context.Background()

	cart, err := c.CreateCart(ctx, "reg_1")
	require.NoError(t, err)
	assert.Equal(t, "reg_1", cart.RegionID)

	cart, err = c.AddLineItem(ctx, "cart_1", "variant_1", 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "variant_1", gotBodies[1]["variant_id"])

	cart, err = c.DeleteLineItem(ctx, "cart_1", "li_1")
	require.NoError(t, err)
	assert.Equal(t, "cart_1", cart.ID)
	assert.Empty(t, cart.Items)

	done, err := c.CompleteCart(ctx, "cart_1")
	require.NoError(t, err)
	assert.Equal(t, "order", done.Type)
	require.NotNil(t, done.Order)
	assert.Equal(t, 7, done.Order.DisplayID)
}

func TestClient_LoginWithoutToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"location": "https://idp.test/authorize"})
	})
	_, err := c.Login(context.Background(), "a@b.test", "pw")
	assert.True(t, IsUnauthorized(err))
}

func TestPool_ReusesAndRebuilds(t *testing.T) {
	p := NewPool(0, nil)
	s := stores.Store{ID: "s1", MedusaURL: "http://a", PublishableKey: "pk_1"}
	c1 := p.For(s)
	assert.Same(t, c1, p.For(s))

	s.PublishableKey = "pk_2"
	c2 := p.For(s)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, "pk_2", c2.publishableKey)
}

func TestTypes_Helpers(t *testing.T) {
	v := Variant{ManageInventory: true, InventoryQuantity: 0}
	assert.False(t, v.InStock())
	v.AllowBackorder = true
	assert.True(t, v.InStock())
	assert.True(t, Variant{}.InStock())

	var nilAddr *Address
	assert.False(t, nilAddr.Complete())
	assert.True(t, (&Address{FirstName: "A", LastName: "B", Address1: "1 St", City: "C", CountryCode: "us", PostalCode: "1"}).Complete())

	pc := &PaymentCollection{PaymentSessions: []PaymentSession{
		{ID: "ps_err", Status: SessionError},
		{ID: "ps_ok", Status: SessionPending, Data: map[string]any{"client_secret": "cs_1"}},
	}}
	active := pc.ActiveSession()
	require.NotNil(t, active)
	assert.Equal(t, "ps_ok", active.ID)
	assert.Equal(t, "cs_1", active.DataString("client_secret"))
	assert.Nil(t, (*PaymentCollection)(nil).ActiveSession())

	cart := Cart{Promotions: []Promotion{{Code: "SUMMER"}}}
	assert.True(t, cart.HasPromotion("SUMMER"))
	assert.False(t, cart.HasPromotion("summer"))
}
