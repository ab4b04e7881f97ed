// Package storefront holds the shopper-facing operations: browsing, cart,
// checkout and account. Every operation is a short sequence of calls against
// the store's commerce backend plus updates to the visitor session.
package storefront

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront/internal/medusa"
	"storefront/internal/payments"
	"storefront/pkg/locks"
	"storefront/pkg/regions"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNoCart             = errors.New("no active cart")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrInvalidPromoCode   = errors.New("promotion code is not valid")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNotAuthenticated   = errors.New("not signed in")
	ErrStepNotReady       = errors.New("checkout step not reachable yet")

	ErrPaymentNotConfirmed = payments.ErrPaymentNotConfirmed
	ErrRegionNotFound      = regions.ErrRegionNotFound
)

// Service carries the shared dependencies of all storefront operations.
type Service struct {
	clients  *medusa.Pool
	regions  *regions.Cache
	locks    locks.Locker
	verifier *payments.Verifier
	log      *zap.SugaredLogger
}

type Deps struct {
	Clients  *medusa.Pool
	Regions  *regions.Cache
	Locks    locks.Locker
	Verifier *payments.Verifier
	Log      *zap.SugaredLogger
}

func New(d Deps) *Service {
	if d.Locks == nil {
		d.Locks = locks.NewMemoryLocker()
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Verifier == nil {
		d.Verifier = payments.NewVerifier(d.Log, nil)
	}
	if d.Regions == nil {
		pool := d.Clients
		d.Regions = regions.NewCache(func(s stores.Store) regions.Source { return pool.For(s) }, 0)
	}
	return &Service{clients: d.Clients, regions: d.Regions, locks: d.Locks, verifier: d.Verifier, log: d.Log}
}

// Regions exposes the region cache for country pickers.
func (s *Service) Regions() *regions.Cache { return s.regions }

func (s *Service) client(st stores.Store) *medusa.Client { return s.clients.For(st) }

// Country returns the visitor's country, defaulting to the store's.
func Country(st stores.Store, sess *sessions.Session) string {
	if sess != nil && sess.CountryCode != "" {
		return sess.CountryCode
	}
	return st.DefaultCountry
}

// Region resolves the pricing region for the visitor.
func (s *Service) Region(ctx context.Context, st stores.Store, sess *sessions.Session) (medusa.Region, error) {
	return s.regions.ForCountry(ctx, st, Country(st, sess))
}

// notFound maps a backend 404 onto ErrNotFound.
func notFound(err error, what string) error {
	if medusa.IsNotFound(err) {
		return errors.Join(ErrNotFound, errors.New(what))
	}
	return err
}

// UserMessage turns a service error into text fit for a toast.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "We couldn't find what you were looking for."
	case errors.Is(err, ErrInvalidPromoCode):
		return "That promotion code is not valid."
	case errors.Is(err, ErrCheckoutInProgress):
		return "Your order is already being placed."
	case errors.Is(err, ErrPaymentNotConfirmed):
		return "Your payment has not been confirmed yet."
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrEmailTaken):
		return capitalize(err.Error()) + "."
	case errors.Is(err, ErrNotAuthenticated):
		return "Please sign in to continue."
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoCart):
		return "Your cart is empty."
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, ErrIncompleteAddress):
		return "Please fill in the complete address."
	case errors.Is(err, ErrStepNotReady):
		return "Please complete the previous checkout step first."
	case errors.Is(err, ErrRegionNotFound):
		return "We don't ship to that country."
	}
	var me *medusa.Error
	if errors.As(err, &me) && me.Status < 500 {
		return strings.TrimSpace(me.Message)
	}
	return medusa.Message(nil)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
