package medusa

import (
	"context"
	"net/http"
	"net/url"
)

const cartFields = "*items,*region,*items.product,*items.variant,+items.thumbnail,+items.total,*promotions,*shipping_methods,*payment_collection,*payment_collection.payment_sessions"

var cartQuery = url.Values{"fields": {cartFields}}

type cartEnvelope struct {
	Cart Cart `json:"cart"`
}

// CartUpdate is the body of POST /store/carts/{id}. Nil fields are left untouched.
type CartUpdate struct {
	RegionID        string   `json:"region_id,omitempty"`
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
}

func (c *Client) CreateCart(ctx context.Context, regionID string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.create", http.MethodPost, "/store/carts", cartQuery, map[string]any{"region_id": regionID}, &out)
	return out.Cart, err
}

func (c *Client) Cart(ctx context.Context, id string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.get", http.MethodGet, "/store/carts/"+url.PathEscape(id), cartQuery, nil, &out)
	return out.Cart, err
}

func (c *Client) UpdateCart(ctx context.Context, id string, upd CartUpdate) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.update", http.MethodPost, "/store/carts/"+url.PathEscape(id), cartQuery, upd, &out)
	return out.Cart, err
}

func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (Cart, error) {
	var out cartEnvelope
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	err := c.do(ctx, "carts.line_items.add", http.MethodPost, "/store/carts/"+url.PathEscape(cartID)+"/line-items", cartQuery, body, &out)
	return out.Cart, err
}

func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (Cart, error) {
	var out cartEnvelope
	path := "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineID)
	err := c.do(ctx, "carts.line_items.update", http.MethodPost, path, cartQuery, map[string]any{"quantity": quantity}, &out)
	return out.Cart, err
}

func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineID string) (Cart, error) {
	var out struct {
		Parent Cart `json:"parent"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineID)
	err := c.do(ctx, "carts.line_items.delete", http.MethodDelete, path, cartQuery, nil, &out)
	return out.Parent, err
}

func (c *Client) AddPromotions(ctx context.Context, cartID string, codes []string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.promotions.add", http.MethodPost, "/store/carts/"+url.PathEscape(cartID)+"/promotions", cartQuery, map[string]any{"promo_codes": codes}, &out)
	return out.Cart, err
}

func (c *Client) RemovePromotions(ctx context.Context, cartID string, codes []string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.promotions.remove", http.MethodDelete, "/store/carts/"+url.PathEscape(cartID)+"/promotions", cartQuery, map[string]any{"promo_codes": codes}, &out)
	return out.Cart, err
}

// TransferCart assigns the cart to the customer authenticated on ctx.
func (c *Client) TransferCart(ctx context.Context, cartID string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.transfer", http.MethodPost, "/store/carts/"+url.PathEscape(cartID)+"/customer", cartQuery, nil, &out)
	return out.Cart, err
}

func (c *Client) ShippingOptions(ctx context.Context, cartID string) ([]ShippingOption, error) {
	var out struct {
		ShippingOptions []ShippingOption `json:"shipping_options"`
	}
	err := c.do(ctx, "shipping_options.list", http.MethodGet, "/store/shipping-options", url.Values{"cart_id": {cartID}}, nil, &out)
	return out.ShippingOptions, err
}

func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string) (Cart, error) {
	var out cartEnvelope
	err := c.do(ctx, "carts.shipping_methods.add", http.MethodPost, "/store/carts/"+url.PathEscape(cartID)+"/shipping-methods", cartQuery, map[string]any{"option_id": optionID}, &out)
	return out.Cart, err
}

// CompleteCart turns the cart into an order.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (Completion, error) {
	var out Completion
	err := c.do(ctx, "carts.complete", http.MethodPost, "/store/carts/"+url.PathEscape(cartID)+"/complete", nil, nil, &out)
	return out, err
}

func (c *Client) PaymentProviders(ctx context.Context, regionID string) ([]PaymentProvider, error) {
	var out struct {
		PaymentProviders []PaymentProvider `json:"payment_providers"`
	}
	err := c.do(ctx, "payment_providers.list", http.MethodGet, "/store/payment-providers", url.Values{"region_id": {regionID}}, nil, &out)
	return out.PaymentProviders, err
}

func (c *Client) CreatePaymentCollection(ctx context.Context, cartID string) (PaymentCollection, error) {
	var out struct {
		PaymentCollection PaymentCollection `json:"payment_collection"`
	}
	err := c.do(ctx, "payment_collections.create", http.MethodPost, "/store/payment-collections", nil, map[string]any{"cart_id": cartID}, &out)
	return out.PaymentCollection, err
}

func (c *Client) InitiatePaymentSession(ctx context.Context, collectionID, providerID string) (PaymentCollection, error) {
	var out struct {
		PaymentCollection PaymentCollection `json:"payment_collection"`
	}
	path := "/store/payment-collections/" + url.PathEscape(collectionID) + "/payment-sessions"
	err := c.do(ctx, "payment_sessions.initiate", http.MethodPost, path, nil, map[string]any{"provider_id": providerID}, &out)
	return out.PaymentCollection, err
}
