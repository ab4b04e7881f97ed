package medusa

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type tokenEnvelope struct {
	Token string `json:"token"`
}

// Login exchanges email/password for a customer JWT.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenEnvelope
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "auth.login", http.MethodPost, "/auth/customer/emailpass", nil, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &Error{Status: http.StatusUnauthorized, Type: "unauthorized", Message: "Login requires an additional step"}
	}
	return out.Token, nil
}

// RegisterIdentity creates the auth identity and returns a registration token,
// which must be used to create the customer record.
func (c *Client) RegisterIdentity(ctx context.Context, email, password string) (string, error) {
	var out tokenEnvelope
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, "auth.register", http.MethodPost, "/auth/customer/emailpass/register", nil, body, &out)
	return out.Token, err
}

// CustomerCreate is the body of POST /store/customers.
type CustomerCreate struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

type customerEnvelope struct {
	Customer Customer `json:"customer"`
}

// CreateCustomer must run on a ctx carrying the registration token.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerCreate) (Customer, error) {
	var out customerEnvelope
	err := c.do(ctx, "customers.create", http.MethodPost, "/store/customers", nil, in, &out)
	return out.Customer, err
}

func (c *Client) Me(ctx context.Context) (Customer, error) {
	var out customerEnvelope
	err := c.do(ctx, "customers.me", http.MethodGet, "/store/customers/me", url.Values{"fields": {"*addresses"}}, nil, &out)
	return out.Customer, err
}

// CustomerUpdate is the body of POST /store/customers/me.
type CustomerUpdate struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

func (c *Client) UpdateMe(ctx context.Context, upd CustomerUpdate) (Customer, error) {
	var out customerEnvelope
	err := c.do(ctx, "customers.update", http.MethodPost, "/store/customers/me", url.Values{"fields": {"*addresses"}}, upd, &out)
	return out.Customer, err
}

func (c *Client) Addresses(ctx context.Context) ([]Address, error) {
	var out struct {
		Addresses []Address `json:"addresses"`
	}
	err := c.do(ctx, "customers.addresses.list", http.MethodGet, "/store/customers/me/addresses", url.Values{"limit": {"50"}}, nil, &out)
	return out.Addresses, err
}

func (c *Client) AddAddress(ctx context.Context, a Address) (Customer, error) {
	a.ID = ""
	var out customerEnvelope
	err := c.do(ctx, "customers.addresses.add", http.MethodPost, "/store/customers/me/addresses", nil, a, &out)
	return out.Customer, err
}

func (c *Client) UpdateAddress(ctx context.Context, id string, a Address) (Customer, error) {
	a.ID = ""
	var out customerEnvelope
	err := c.do(ctx, "customers.addresses.update", http.MethodPost, "/store/customers/me/addresses/"+url.PathEscape(id), nil, a, &out)
	return out.Customer, err
}

func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.do(ctx, "customers.addresses.delete", http.MethodDelete, "/store/customers/me/addresses/"+url.PathEscape(id), nil, nil, nil)
}

type OrderList struct {
	Page
	Orders []Order `json:"orders"`
}

const orderFields = "*items,*shipping_address,*billing_address,*shipping_methods,+display_id"

func (c *Client) ListOrders(ctx context.Context, limit, offset int) (OrderList, error) {
	v := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
		"order":  {"-created_at"},
		"fields": {orderFields},
	}
	var out OrderList
	err := c.do(ctx, "orders.list", http.MethodGet, "/store/orders", v, nil, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	var out struct {
		Order Order `json:"order"`
	}
	err := c.do(ctx, "orders.get", http.MethodGet, "/store/orders/"+url.PathEscape(id), url.Values{"fields": {orderFields}}, nil, &out)
	return out.Order, err
}
