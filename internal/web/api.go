package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/medusa"
	"storefront/internal/storefront"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
	"storefront/pkg/openapi"
	"storefront/pkg/problems"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type cartResponse struct {
	Cart      *medusa.Cart `json:"cart"`
	ItemCount int          `json:"item_count"`
}

type stepResponse struct {
	Step  storefront.Step   `json:"step"`
	Steps []storefront.Step `json:"steps"`
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", s.apiCart)
		r.Post("/cart/items", s.apiAddItem)
		r.Get("/checkout/step", s.apiCheckoutStep)
		r.Get("/openapi.json", s.api.ServeHandler(s.opts.ServiceName, s.opts.Version, s.opts.CookieName))
	})

	cartSchema := map[string]any{"type": "object", "properties": map[string]any{
		"cart":       map[string]string{"type": "object"},
		"item_count": map[string]string{"type": "integer"},
	}}
	s.api.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/api/cart", Summary: "Current cart", Tags: []string{"cart"},
		Responses: map[string]any{"200": openapi.JSONResponse("The visitor's cart, null when none", cartSchema)},
	})
	s.api.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/api/cart/items", Summary: "Add a variant to the cart", Tags: []string{"cart"},
		RequestBody: map[string]any{"required": true, "content": map[string]any{"application/json": map[string]any{"schema": map[string]any{
			"type":     "object",
			"required": []string{"variant_id", "quantity"},
			"properties": map[string]any{
				"variant_id": map[string]string{"type": "string"},
				"quantity":   map[string]any{"type": "integer", "minimum": 1, "maximum": 99},
			},
		}}}},
		Responses: map[string]any{
			"200": openapi.JSONResponse("Updated cart", cartSchema),
			"400": openapi.ProblemResponse("Rejected by the commerce backend"),
			"422": openapi.ProblemResponse("Invalid request body"),
		},
	})
	s.api.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/api/checkout/step", Summary: "Checkout step the cart has reached", Tags: []string{"checkout"},
		Parameters: []any{map[string]any{"name": "step", "in": "query", "schema": map[string]string{"type": "string"}}},
		Responses: map[string]any{
			"200": openapi.JSONResponse("Resolved step", map[string]any{"type": "object", "properties": map[string]any{
				"step":  map[string]string{"type": "string"},
				"steps": map[string]any{"type": "array", "items": map[string]string{"type": "string"}},
			}}),
			"404": openapi.ProblemResponse("No cart with items"),
		},
	})
}

func (s *Server) apiCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := s.svc.Current(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, cartResponse{Cart: cart, ItemCount: storefront.ItemCount(cart)}, http.StatusOK)
}

func (s *Server) apiAddItem(w http.ResponseWriter, r *http.Request) {
	var in addItemForm
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		problems.Write(w, http.StatusUnprocessableEntity, "invalid-body", "Invalid request body", err.Error())
		return
	}
	if err := s.validate.Struct(in); err != nil {
		problems.Write(w, http.StatusUnprocessableEntity, "validation", "Invalid request body", validationMessage(err))
		return
	}
	ctx := r.Context()
	cart, err := s.svc.AddItem(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx), in.VariantID, in.Quantity)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	writeJSON(w, cartResponse{Cart: cart, ItemCount: storefront.ItemCount(cart)}, http.StatusOK)
}

func (s *Server) apiCheckoutStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cart, err := s.svc.Current(ctx, middleware.StoreFrom(ctx), middleware.SessionFrom(ctx))
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	if cart == nil || len(cart.Items) == 0 {
		problems.Write(w, http.StatusNotFound, "no-cart", "No cart", storefront.UserMessage(storefront.ErrEmptyCart))
		return
	}
	writeJSON(w, stepResponse{Step: storefront.ResolveStep(cart, r.URL.Query().Get("step")), Steps: storefront.Steps}, http.StatusOK)
}

// apiError maps service errors onto problem responses.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	msg := storefront.UserMessage(err)
	var me *medusa.Error
	switch {
	case errors.Is(err, storefront.ErrNotFound), medusa.IsNotFound(err):
		problems.Write(w, http.StatusNotFound, "not-found", "Not found", msg)
	case errors.Is(err, storefront.ErrNotAuthenticated):
		problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Not signed in", msg)
	case errors.Is(err, storefront.ErrInvalidQuantity), errors.Is(err, storefront.ErrRegionNotFound):
		problems.Write(w, http.StatusBadRequest, "invalid-request", "Invalid request", msg)
	case errors.As(err, &me) && me.Status < 500:
		problems.Write(w, http.StatusBadRequest, "rejected", "Rejected by the commerce backend", msg)
	default:
		logger.From(r.Context()).Errorw("api request failed", "path", r.URL.Path, "err", err)
		problems.Write(w, http.StatusBadGateway, "upstream", "Commerce backend unavailable", msg)
	}
}
