package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/storefront"
	"storefront/pkg/middleware"
	"storefront/pkg/sessions"
)

func (s *Server) cartPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := s.svc.Current(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "cart", page{Title: "Cart", Cart: cart})
}

// mutate runs a cart change and reports the outcome with a toast.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, to, success string, fn func() error) {
	if err := fn(); err != nil {
		toast(r, sessions.LevelError, storefront.UserMessage(err))
	} else if success != "" {
		toast(r, sessions.LevelSuccess, success)
	}
	redirect(w, r, to)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var f addItemForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, back(r, "/store"))
		return
	}
	ctx := r.Context()
	s.mutate(w, r, back(r, "/cart"), "Added to cart.", func() error {
		_, err := s.svc.AddItem(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.VariantID, f.Quantity)
		return err
	})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var f quantityForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, "/cart")
		return
	}
	ctx := r.Context()
	s.mutate(w, r, "/cart", "", func() error {
		_, err := s.svc.UpdateItem(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), chi.URLParam(r, "id"), f.Quantity)
		return err
	})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.mutate(w, r, "/cart", "Item removed.", func() error {
		_, err := s.svc.RemoveItem(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), chi.URLParam(r, "id"))
		return err
	})
}

func (s *Server) applyPromo(w http.ResponseWriter, r *http.Request) {
	to := back(r, "/cart")
	var f promoForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, to)
		return
	}
	ctx := r.Context()
	s.mutate(w, r, to, "Promotion applied.", func() error {
		_, err := s.svc.ApplyPromoCode(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.Code)
		return err
	})
}

func (s *Server) removePromo(w http.ResponseWriter, r *http.Request) {
	to := back(r, "/cart")
	var f promoForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, to)
		return
	}
	ctx := r.Context()
	s.mutate(w, r, to, "Promotion removed.", func() error {
		_, err := s.svc.RemovePromoCode(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.Code)
		return err
	})
}

func (s *Server) setRegion(w http.ResponseWriter, r *http.Request) {
	var f regionForm
	if err := s.bind(r, &f); err != nil {
		toast(r, sessions.LevelError, validationMessage(err))
		redirect(w, r, back(r, "/"))
		return
	}
	ctx := r.Context()
	s.mutate(w, r, localPath(f.Next, back(r, "/")), "", func() error {
		return s.svc.SetRegion(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), f.CountryCode)
	})
}
