// Package payments confirms with the payment processor that a payment
// session is really funded before the cart is turned into an order.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"

	"storefront/internal/medusa"
	"storefront/pkg/money"
	"storefront/pkg/stores"
)

// ErrPaymentNotConfirmed means the processor has not accepted the payment yet.
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")

// Verifier checks payment sessions against Stripe.
type Verifier struct {
	backend stripe.Backend
	log     *zap.SugaredLogger
}

// NewVerifier returns a verifier using backend, or the default Stripe API
// backend when nil.
func NewVerifier(log *zap.SugaredLogger, backend stripe.Backend) *Verifier {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Verifier{backend: backend, log: log}
}

var confirmedIntent = map[stripe.PaymentIntentStatus]bool{
	stripe.PaymentIntentStatusSucceeded:       true,
	stripe.PaymentIntentStatusRequiresCapture: true,
	stripe.PaymentIntentStatusProcessing:      true,
}

var confirmedSession = map[string]bool{
	medusa.SessionAuthorized: true,
	medusa.SessionCaptured:   true,
	medusa.SessionPending:    true,
}

// Verify returns nil when the session may be completed.
func (v *Verifier) Verify(ctx context.Context, s stores.Store, sess *medusa.PaymentSession) error {
	if sess == nil {
		return fmt.Errorf("%w: no payment session", ErrPaymentNotConfirmed)
	}
	if !strings.HasPrefix(sess.ProviderID, medusa.ProviderStripePrefix) {
		return nil
	}
	if !s.HasStripe() {
		if confirmedSession[sess.Status] {
			return nil
		}
		return fmt.Errorf("%w: session %s", ErrPaymentNotConfirmed, sess.Status)
	}
	intentID := sess.DataString("id")
	if intentID == "" {
		return fmt.Errorf("%w: session has no payment intent", ErrPaymentNotConfirmed)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Client{B: v.backend, Key: s.StripeSecretKey}.Get(intentID, params)
	if err != nil {
		return fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}
	log := v.log.With("store", s.Slug, "payment_intent", pi.ID, "status", pi.Status)
	if !confirmedIntent[pi.Status] {
		log.Infow("payment intent not confirmed")
		return fmt.Errorf("%w: intent %s", ErrPaymentNotConfirmed, pi.Status)
	}
	if sess.Amount.IsPositive() {
		want := money.MinorUnits(sess.Amount, string(pi.Currency))
		if pi.Amount != want {
			log.Warnw("payment intent amount mismatch", "intent_amount", pi.Amount, "session_amount", want)
			return fmt.Errorf("%w: amount mismatch", ErrPaymentNotConfirmed)
		}
	}
	return nil
}
