// Package web serves the storefront pages and the small JSON API used by
// client-side widgets. Pages render server-side; every state change is a
// POST answered with a redirect, and outcomes are reported as toasts.
package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"storefront/internal/storefront"
	"storefront/pkg/middleware"
	"storefront/pkg/openapi"
)

const loginPath = "/account/login"

// Options configure a Server.
type Options struct {
	ServiceName string
	Version     string
	CookieName  string
}

type Server struct {
	svc      *storefront.Service
	views    *views
	validate *validator.Validate
	api      *openapi.Registry
	opts     Options
}

func New(svc *storefront.Service, opts Options) (*Server, error) {
	v, err := parseViews()
	if err != nil {
		return nil, err
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "storefront"
	}
	if opts.Version == "" {
		opts.Version = "0.1.0"
	}
	return &Server{svc: svc, views: v, validate: newValidator(), api: openapi.NewRegistry(), opts: opts}, nil
}

// Routes mounts pages and the JSON API on r. Store, session and customer
// middleware must already be installed.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.home)
	r.Get("/store", s.storePage)
	r.Get("/search", s.search)
	r.Get("/products/{handle}", s.product)
	r.Get("/collections/{handle}", s.collection)
	r.Get("/categories/{handle}", s.category)

	r.Get("/cart", s.cartPage)
	r.Post("/cart/items", s.addItem)
	r.Post("/cart/items/{id}", s.updateItem)
	r.Post("/cart/items/{id}/delete", s.removeItem)
	r.Post("/cart/promotions", s.applyPromo)
	r.Post("/cart/promotions/delete", s.removePromo)
	r.Post("/region", s.setRegion)

	r.Get("/checkout", s.checkout)
	r.Post("/checkout/address", s.checkoutAddress)
	r.Post("/checkout/delivery", s.checkoutDelivery)
	r.Post("/checkout/payment", s.checkoutPayment)
	r.Post("/checkout/place", s.placeOrder)
	r.Get("/order/confirmed/{id}", s.orderConfirmed)

	r.Route("/account", func(r chi.Router) {
		r.Get("/login", s.loginPage)
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/logout", s.logout)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCustomer(loginPath))
			r.Get("/", s.account)
			r.Get("/profile", s.profilePage)
			r.Post("/profile", s.updateProfile)
			r.Get("/addresses", s.addressesPage)
			r.Post("/addresses", s.addAddress)
			r.Post("/addresses/{id}", s.updateAddress)
			r.Post("/addresses/{id}/delete", s.deleteAddress)
			r.Get("/orders", s.ordersPage)
			r.Get("/orders/{id}", s.orderPage)
		})
	})

	s.apiRoutes(r)
}
