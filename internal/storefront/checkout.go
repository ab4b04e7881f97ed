package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/medusa"
	"storefront/pkg/logger"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
	"storefront/pkg/usage"
)

// Step is one page of the checkout flow.
type Step string

const (
	StepAddress  Step = "address"
	StepDelivery Step = "delivery"
	StepPayment  Step = "payment"
	StepReview   Step = "review"
)

var stepOrder = map[Step]int{StepAddress: 0, StepDelivery: 1, StepPayment: 2, StepReview: 3}

// Steps lists the checkout steps in order.
var Steps = []Step{StepAddress, StepDelivery, StepPayment, StepReview}

// ParseStep returns the step named v, or "" when v is not a step.
func ParseStep(v string) Step {
	s := Step(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := stepOrder[s]; ok {
		return s
	}
	return ""
}

// completionLockTTL bounds how long a crashed checkout can block a retry.
const completionLockTTL = 2 * time.Minute

var ErrIncompleteAddress = errors.New("address is incomplete")

// DeriveStep infers the first checkout step the cart has not satisfied.
func DeriveStep(cart *medusa.Cart) Step {
	switch {
	case cart == nil || cart.Email == "" || !cart.ShippingAddress.Complete():
		return StepAddress
	case len(cart.ShippingMethods) == 0:
		return StepDelivery
	case cart.PaymentCollection.ActiveSession() == nil:
		return StepPayment
	}
	return StepReview
}

// ResolveStep honours requested only when the cart has reached it; a step
// past the derived one falls back to the derived step.
func ResolveStep(cart *medusa.Cart, requested string) Step {
	derived := DeriveStep(cart)
	req := ParseStep(requested)
	if req == "" || stepOrder[req] > stepOrder[derived] {
		return derived
	}
	return req
}

// AddressInput is the address step form after validation.
type AddressInput struct {
	Email           string
	ShippingAddress medusa.Address
	BillingAddress  *medusa.Address // nil: same as shipping
}

func (s *Service) SetAddresses(ctx context.Context, st stores.Store, sess *sessions.Session, in AddressInput) (*medusa.Cart, error) {
	ship := in.ShippingAddress
	ship.ID = ""
	ship.CountryCode = strings.ToLower(ship.CountryCode)
	if strings.TrimSpace(in.Email) == "" || !ship.Complete() {
		return nil, ErrIncompleteAddress
	}
	bill := ship
	if in.BillingAddress != nil {
		bill = *in.BillingAddress
		bill.ID = ""
		bill.CountryCode = strings.ToLower(bill.CountryCode)
		if !bill.Complete() {
			return nil, ErrIncompleteAddress
		}
	}
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	// The cart must be priced in the region that ships to the address.
	upd := medusa.CartUpdate{Email: strings.TrimSpace(in.Email), ShippingAddress: &ship, BillingAddress: &bill}
	if cart.Region != nil && !regionHasCountry(*cart.Region, ship.CountryCode) {
		region, err := s.regions.ForCountry(ctx, st, ship.CountryCode)
		if err != nil {
			return nil, err
		}
		if !regionHasCountry(region, ship.CountryCode) {
			return nil, ErrRegionNotFound
		}
		upd.RegionID = region.ID
		sess.SetCountry(ship.CountryCode)
	}
	updated, err := s.client(st).UpdateCart(ctx, cart.ID, upd)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) ShippingOptions(ctx context.Context, st stores.Store, sess *sessions.Session) ([]medusa.ShippingOption, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	return s.client(st).ShippingOptions(ctx, cart.ID)
}

func (s *Service) SetShippingMethod(ctx context.Context, st stores.Store, sess *sessions.Session, optionID string) (*medusa.Cart, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	if DeriveStep(cart) == StepAddress {
		return nil, ErrStepNotReady
	}
	updated, err := s.client(st).AddShippingMethod(ctx, cart.ID, optionID)
	if err != nil {
		return nil, notFound(err, "shipping option "+optionID)
	}
	return &updated, nil
}

// PaymentProviders lists the providers enabled for the cart's region.
func (s *Service) PaymentProviders(ctx context.Context, st stores.Store, sess *sessions.Session) ([]medusa.PaymentProvider, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	return s.client(st).PaymentProviders(ctx, cart.RegionID)
}

// PaymentSetup is what the payment step needs to render the card element.
type PaymentSetup struct {
	Cart         *medusa.Cart
	Session      *medusa.PaymentSession
	ClientSecret string
}

// IsStripe reports whether the session is handled by the Stripe card element.
func (p PaymentSetup) IsStripe() bool {
	return p.Session != nil && strings.HasPrefix(p.Session.ProviderID, medusa.ProviderStripePrefix)
}

// InitiatePayment makes sure the cart has a payment session for providerID,
// creating the payment collection first when the cart has none.
func (s *Service) InitiatePayment(ctx context.Context, st stores.Store, sess *sessions.Session, providerID string) (PaymentSetup, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return PaymentSetup{}, err
	}
	if len(cart.ShippingMethods) == 0 || DeriveStep(cart) == StepAddress {
		return PaymentSetup{}, ErrStepNotReady
	}
	c := s.client(st)
	if active := cart.PaymentCollection.ActiveSession(); active != nil && active.ProviderID == providerID {
		return setupFor(cart, active), nil
	}
	collectionID := ""
	if cart.PaymentCollection != nil {
		collectionID = cart.PaymentCollection.ID
	} else {
		pc, err := c.CreatePaymentCollection(ctx, cart.ID)
		if err != nil {
			return PaymentSetup{}, err
		}
		collectionID = pc.ID
	}
	if _, err := c.InitiatePaymentSession(ctx, collectionID, providerID); err != nil {
		return PaymentSetup{}, err
	}
	reloaded, err := c.Cart(ctx, cart.ID)
	if err != nil {
		return PaymentSetup{}, err
	}
	return setupFor(&reloaded, reloaded.PaymentCollection.ActiveSession()), nil
}

// PaymentSetupFor describes the cart's current payment session, if any.
func PaymentSetupFor(cart *medusa.Cart) PaymentSetup {
	if cart == nil {
		return PaymentSetup{}
	}
	return setupFor(cart, cart.PaymentCollection.ActiveSession())
}

func setupFor(cart *medusa.Cart, ps *medusa.PaymentSession) PaymentSetup {
	out := PaymentSetup{Cart: cart, Session: ps}
	if out.IsStripe() {
		out.ClientSecret = ps.DataString("client_secret")
	}
	return out
}

// PlaceOrder completes the cart once the payment is confirmed. Concurrent
// attempts for one cart are refused with ErrCheckoutInProgress.
func (s *Service) PlaceOrder(ctx context.Context, st stores.Store, sess *sessions.Session) (medusa.Order, error) {
	log := logger.From(ctx)
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return medusa.Order{}, err
	}
	if len(cart.Items) == 0 {
		return medusa.Order{}, ErrEmptyCart
	}
	if DeriveStep(cart) != StepReview {
		return medusa.Order{}, ErrStepNotReady
	}

	key := "checkout:" + st.ID + ":" + cart.ID
	token, err := s.locks.Acquire(ctx, key, completionLockTTL)
	if err != nil {
		return medusa.Order{}, err
	}
	if token == "" {
		return medusa.Order{}, ErrCheckoutInProgress
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warnw("release checkout lock", "cart", cart.ID, "err", err)
		}
	}()

	if err := s.verifier.Verify(ctx, st, cart.PaymentCollection.ActiveSession()); err != nil {
		usage.OrdersPlaced.WithLabelValues("payment_unconfirmed").Inc()
		return medusa.Order{}, err
	}
	res, err := s.client(st).CompleteCart(ctx, cart.ID)
	if err != nil {
		usage.OrdersPlaced.WithLabelValues("error").Inc()
		return medusa.Order{}, err
	}
	if res.Type != "order" || res.Order == nil {
		usage.OrdersPlaced.WithLabelValues("rejected").Inc()
		msg := "order could not be placed"
		if res.Error != nil && res.Error.Message != "" {
			msg = res.Error.Message
		}
		log.Infow("cart completion refused", "cart", cart.ID, "message", msg)
		return medusa.Order{}, &medusa.Error{Status: http.StatusBadRequest, Type: "payment_authorization_error", Message: msg}
	}
	sess.SetCartID("")
	usage.OrdersPlaced.WithLabelValues("placed").Inc()
	log.Infow("order placed", "order", res.Order.ID, "cart", cart.ID)
	return *res.Order, nil
}

// Order returns a placed order for the confirmation page.
func (s *Service) Order(ctx context.Context, st stores.Store, id string) (medusa.Order, error) {
	o, err := s.client(st).Order(ctx, id)
	if err != nil {
		return medusa.Order{}, notFound(err, fmt.Sprintf("order %s", id))
	}
	return o, nil
}
