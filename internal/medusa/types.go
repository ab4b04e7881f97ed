package medusa

import (
	"time"

	"github.com/shopspring/decimal"
)

type Country struct {
	ISO2        string `json:"iso_2"`
	ISO3        string `json:"iso_3,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name"`
}

type Region struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CurrencyCode string    `json:"currency_code"`
	Countries    []Country `json:"countries"`
}

type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type OptionValue struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	OptionID string `json:"option_id,omitempty"`
}

type ProductOption struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Values []OptionValue `json:"values"`
}

type CalculatedPrice struct {
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	CurrencyCode     string          `json:"currency_code"`
}

type Variant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	SKU               string           `json:"sku"`
	Options           []OptionValue    `json:"options"`
	CalculatedPrice   *CalculatedPrice `json:"calculated_price,omitempty"`
	InventoryQuantity int              `json:"inventory_quantity"`
	ManageInventory   bool             `json:"manage_inventory"`
	AllowBackorder    bool             `json:"allow_backorder"`
}

// InStock mirrors the backend's purchasability rule for a variant.
func (v Variant) InStock() bool {
	return !v.ManageInventory || v.AllowBackorder || v.InventoryQuantity > 0
}

// OptionValueFor returns the variant's value for the given product option id.
func (v Variant) OptionValueFor(optionID string) string {
	for _, o := range v.Options {
		if o.OptionID == optionID {
			return o.Value
		}
	}
	return ""
}

type Collection struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

type Category struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Handle           string     `json:"handle"`
	Description      string     `json:"description"`
	ParentCategoryID string     `json:"parent_category_id,omitempty"`
	CategoryChildren []Category `json:"category_children,omitempty"`
}

type Tag struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type Product struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	Handle       string          `json:"handle"`
	Description  string          `json:"description"`
	Thumbnail    string          `json:"thumbnail"`
	Material     string          `json:"material,omitempty"`
	Images       []Image         `json:"images"`
	Options      []ProductOption `json:"options"`
	Variants     []Variant       `json:"variants"`
	CollectionID string          `json:"collection_id,omitempty"`
	Collection   *Collection     `json:"collection,omitempty"`
	Categories   []Category      `json:"categories,omitempty"`
	Tags         []Tag           `json:"tags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Address struct {
	ID                string `json:"id,omitempty"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Company           string `json:"company,omitempty"`
	Address1          string `json:"address_1"`
	Address2          string `json:"address_2,omitempty"`
	City              string `json:"city"`
	CountryCode       string `json:"country_code"`
	Province          string `json:"province,omitempty"`
	PostalCode        string `json:"postal_code"`
	Phone             string `json:"phone,omitempty"`
	IsDefaultShipping bool   `json:"is_default_shipping,omitempty"`
	IsDefaultBilling  bool   `json:"is_default_billing,omitempty"`
}

// Complete reports whether the address carries the fields required to ship.
func (a *Address) Complete() bool {
	return a != nil && a.FirstName != "" && a.LastName != "" && a.Address1 != "" &&
		a.City != "" && a.CountryCode != "" && a.PostalCode != ""
}

type LineItem struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle,omitempty"`
	Thumbnail     string          `json:"thumbnail"`
	VariantID     string          `json:"variant_id"`
	ProductID     string          `json:"product_id"`
	ProductHandle string          `json:"product_handle"`
	VariantTitle  string          `json:"variant_title"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
}

type ShippingOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	PriceType  string          `json:"price_type"`
	ProviderID string          `json:"provider_id"`
}

type ShippingMethod struct {
	ID               string          `json:"id"`
	ShippingOptionID string          `json:"shipping_option_id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
}

// Payment session states reported by the backend.
const (
	SessionPending      = "pending"
	SessionRequiresMore = "requires_more"
	SessionAuthorized   = "authorized"
	SessionCaptured     = "captured"
	SessionError        = "error"
	SessionCanceled     = "canceled"
)

// Payment provider ids.
const (
	ProviderStripePrefix  = "pp_stripe"
	ProviderSystemDefault = "pp_system_default"
)

type PaymentSession struct {
	ID         string          `json:"id"`
	ProviderID string          `json:"provider_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Data       map[string]any  `json:"data"`
}

// DataString returns a string field from the provider data blob.
func (p PaymentSession) DataString(key string) string {
	if p.Data == nil {
		return ""
	}
	s, _ := p.Data[key].(string)
	return s
}

type PaymentCollection struct {
	ID              string           `json:"id"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          string           `json:"status"`
	PaymentSessions []PaymentSession `json:"payment_sessions"`
}

// ActiveSession returns the first session not in a terminal failure state.
func (pc *PaymentCollection) ActiveSession() *PaymentSession {
	if pc == nil {
		return nil
	}
	for i := range pc.PaymentSessions {
		switch pc.PaymentSessions[i].Status {
		case SessionError, SessionCanceled:
			continue
		}
		return &pc.PaymentSessions[i]
	}
	return nil
}

type PaymentProvider struct {
	ID        string `json:"id"`
	IsEnabled bool   `json:"is_enabled"`
}

type ApplicationMethod struct {
	Type         string          `json:"type"`
	Value        decimal.Decimal `json:"value"`
	CurrencyCode string          `json:"currency_code,omitempty"`
}

type Promotion struct {
	ID                string             `json:"id"`
	Code              string             `json:"code"`
	IsAutomatic       bool               `json:"is_automatic"`
	ApplicationMethod *ApplicationMethod `json:"application_method,omitempty"`
}

type Cart struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	RegionID          string             `json:"region_id"`
	Region            *Region            `json:"region,omitempty"`
	CurrencyCode      string             `json:"currency_code"`
	CustomerID        string             `json:"customer_id,omitempty"`
	Items             []LineItem         `json:"items"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Promotions        []Promotion        `json:"promotions"`
	ItemSubtotal      decimal.Decimal    `json:"item_subtotal"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	DiscountTotal     decimal.Decimal    `json:"discount_total"`
	ShippingTotal     decimal.Decimal    `json:"shipping_total"`
	TaxTotal          decimal.Decimal    `json:"tax_total"`
	Total             decimal.Decimal    `json:"total"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// HasPromotion reports whether code is applied to the cart.
func (c *Cart) HasPromotion(code string) bool {
	for _, p := range c.Promotions {
		if p.Code == code {
			return true
		}
	}
	return false
}

type Customer struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	CompanyName string    `json:"company_name"`
	Addresses   []Address `json:"addresses"`
	CreatedAt   time.Time `json:"created_at"`
}

type Order struct {
	ID                string           `json:"id"`
	DisplayID         int              `json:"display_id"`
	Email             string           `json:"email"`
	Status            string           `json:"status"`
	PaymentStatus     string           `json:"payment_status"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	CurrencyCode      string           `json:"currency_code"`
	Items             []LineItem       `json:"items"`
	ShippingAddress   *Address         `json:"shipping_address,omitempty"`
	BillingAddress    *Address         `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod `json:"shipping_methods"`
	ItemSubtotal      decimal.Decimal  `json:"item_subtotal"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	DiscountTotal     decimal.Decimal  `json:"discount_total"`
	ShippingTotal     decimal.Decimal  `json:"shipping_total"`
	TaxTotal          decimal.Decimal  `json:"tax_total"`
	Total             decimal.Decimal  `json:"total"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Completion is the answer of POST /store/carts/{id}/complete.
// Type is "order" on success; "cart" when the backend refused to complete.
type Completion struct {
	Type  string `json:"type"`
	Order *Order `json:"order,omitempty"`
	Cart  *Cart  `json:"cart,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Page carries list pagination metadata.
type Page struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
