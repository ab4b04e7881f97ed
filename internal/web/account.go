package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront/internal/medusa"
	"storefront/internal/storefront"
	"storefront/pkg/middleware"
	"storefront/pkg/sessions"
)

type loginData struct {
	Next string
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	next := localPath(r.URL.Query().Get("next"), "/account")
	if medusa.CustomerToken(r.Context()) != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "login", page{Title: "Sign in", Data: loginData{Next: next}})
}

func loginURL(next string) string {
	return loginPath + "?next=" + url.QueryEscape(next)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var f loginForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, loginURL(localPath(f.Next, "/account")))
		return
	}
	next := localPath(f.Next, "/account")
	ctx := r.Context()
	if err := s.svc.Login(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.Email, f.Password); err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		redirect(w, r, loginURL(next))
		return
	}
	toast(r, sessions.LevelSuccess, "Welcome back!")
	redirect(w, r, next)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var f registerForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, loginPath)
		return
	}
	ctx := r.Context()
	err := s.svc.Register(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), storefront.RegisterInput{
		Email: f.Email, Password: f.Password, FirstName: f.FirstName, LastName: f.LastName, Phone: f.Phone,
	})
	if err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
		redirect(w, r, loginPath)
		return
	}
	toast(r, sessions.LevelSuccess, "Your account has been created.")
	redirect(w, r, "/account")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	s.svc.Logout(sess)
	sess.Push(sessions.LevelInfo, "You have been signed out.")
	redirect(w, r, "/")
}

type accountData struct {
	Customer medusa.Customer
	Orders   []medusa.Order
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, sess := middleware.StoreFrom(ctx), middleware.SessionFrom(ctx)
	cus, err := s.svc.Customer(ctx, st, sess)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orders, err := s.svc.Orders(ctx, st, 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recent := orders.Orders
	if len(recent) > 5 {
		recent = recent[:5]
	}
	s.render(w, r, http.StatusOK, "account", page{Title: "Account", Data: accountData{Customer: cus, Orders: recent}})
}

func (s *Server) profilePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cus, err := s.svc.Customer(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "profile", page{Title: "Profile", Data: cus})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var f profileForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, "/account/profile")
		return
	}
	ctx := r.Context()
	s.mutate(w, r, "/account/profile", "Profile updated.", func() error {
		_, err := s.svc.UpdateProfile(ctx, middleware.StoreFrom(ctx), medusa.CustomerUpdate{
			FirstName: f.FirstName, LastName: f.LastName, Phone: f.Phone, CompanyName: f.CompanyName,
		})
		return err
	})
}

func (s *Server) addressesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := s.svc.Addresses(ctx, middleware.StoreFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "addresses", page{Title: "Addresses", Data: list})
}

func (s *Server) addAddress(w http.ResponseWriter, r *http.Request) {
	var f addressForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, "/account/addresses")
		return
	}
	ctx := r.Context()
	s.mutate(w, r, "/account/addresses", "Address added.", func() error {
		return s.svc.AddAddress(ctx, middleware.StoreFrom(ctx), f.address())
	})
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var f addressForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, "/account/addresses")
		return
	}
	ctx := r.Context()
	s.mutate(w, r, "/account/addresses", "Address updated.", func() error {
		return s.svc.UpdateAddress(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "id"), f.address())
	})
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.mutate(w, r, "/account/addresses", "Address removed.", func() error {
		return s.svc.DeleteAddress(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "id"))
	})
}

func (s *Server) ordersPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, _ := strconv.Atoi(r.URL.Query().Get("page"))
	res, err := s.svc.Orders(ctx, middleware.StoreFrom(ctx), n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "orders", page{Title: "Orders", Data: res})
}

func (s *Server) orderPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := s.svc.CustomerOrder(ctx, middleware.StoreFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "order", page{Title: "Order #" + strconv.Itoa(order.DisplayID), Data: order})
}
