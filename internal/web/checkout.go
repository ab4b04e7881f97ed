package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/medusa"
	"storefront/internal/storefront"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
	"storefront/pkg/sessions"
)

type checkoutData struct {
	Step             storefront.Step
	Steps            []storefront.Step
	ShippingOptions  []medusa.ShippingOption
	Providers        []medusa.PaymentProvider
	Payment          storefront.PaymentSetup
	SameAsBilling    bool
	StripePublishKey string
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx)
	st, sess := middleware.StoreFrom(ctx), middleware.SessionFrom(ctx)
	cart, err := s.svc.Current(ctx, st, sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cart == nil || len(cart.Items) == 0 {
		toast(r, sessions.LevelInfo, storefront.UserMessage(storefront.ErrEmptyCart))
		redirect(w, r, "/cart")
		return
	}
	d := checkoutData{
		Step:             storefront.ResolveStep(cart, r.URL.Query().Get("step")),
		Steps:            storefront.Steps,
		Payment:          storefront.PaymentSetupFor(cart),
		StripePublishKey: st.StripePublishableKey,
		SameAsBilling:    cart.BillingAddress == nil || sameAddress(cart.ShippingAddress, cart.BillingAddress),
	}
	if d.Step != storefront.StepAddress {
		if d.ShippingOptions, err = s.svc.ShippingOptions(ctx, st, sess); err != nil {
			log.Warnw("list shipping options", "cart", cart.ID, "err", err)
		}
	}
	if d.Step == storefront.StepPayment || d.Step == storefront.StepReview {
		if d.Providers, err = s.svc.PaymentProviders(ctx, st, sess); err != nil {
			log.Warnw("list payment providers", "cart", cart.ID, "err", err)
		}
	}
	s.render(w, r, http.StatusOK, "checkout", page{Title: "Checkout", Cart: cart, Data: d})
}

func sameAddress(a, b *medusa.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := *a, *b
	x.ID, y.ID = "", ""
	return x == y
}

func stepURL(step storefront.Step) string { return "/checkout?step=" + string(step) }

func (s *Server) checkoutAddress(w http.ResponseWriter, r *http.Request) {
	var f checkoutEmailForm
	var ship shippingAddressForm
	var bill billingAddressForm
	err := s.bind(r, &f)
	if err == nil {
		err = s.bind(r, &ship)
	}
	if err == nil && !f.SameAsBilling {
		err = s.bind(r, &bill)
	}
	if err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, stepURL(storefront.StepAddress))
		return
	}
	in := storefront.AddressInput{Email: f.Email, ShippingAddress: addressForm(ship).address()}
	if !f.SameAsBilling {
		b := addressForm(bill).address()
		in.BillingAddress = &b
	}
	ctx := r.Context()
	if _, err := s.svc.SetAddresses(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), in); err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		redirect(w, r, stepURL(storefront.StepAddress))
		return
	}
	redirect(w, r, stepURL(storefront.StepDelivery))
}

func (s *Server) checkoutDelivery(w http.ResponseWriter, r *http.Request) {
	var f shippingForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, stepURL(storefront.StepDelivery))
		return
	}
	ctx := r.Context()
	if _, err := s.svc.SetShippingMethod(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.OptionID); err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		redirect(w, r, stepURL(storefront.StepDelivery))
		return
	}
	redirect(w, r, stepURL(storefront.StepPayment))
}

func (s *Server) checkoutPayment(w http.ResponseWriter, r *http.Request) {
	var f paymentForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, stepURL(storefront.StepPayment))
		return
	}
	ctx := r.Context()
	if _, err := s.svc.InitiatePayment(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.ProviderID); err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		redirect(w, r, stepURL(storefront.StepPayment))
		return
	}
	redirect(w, r, stepURL(storefront.StepReview))
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := s.svc.PlaceOrder(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx))
	if err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		if errors.Is(err, storefront.ErrEmptyCart) || errors.Is(err, storefront.ErrNoCart) {
			redirect(w, r, "/cart")
			return
		}
		redirect(w, r, stepURL(storefront.StepReview))
		return
	}
	redirect(w, r, "/order/confirmed/"+order.ID)
}

func (s *Server) orderConfirmed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := s.svc.Order(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "order_confirmed", page{Title: "Order confirmed", Data: order})
}
