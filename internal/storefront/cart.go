package storefront

import (
	"context"
	"strings"

	"storefront/internal/medusa"
	"storefront/pkg/logger"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
	"storefront/pkg/usage"
)

// Current returns the session's cart, or nil when there is none. A cart the
// backend no longer knows, or one already turned into an order, is dropped
// from the session.
func (s *Service) Current(ctx context.Context, st stores.Store, sess *sessions.Session) (*medusa.Cart, error) {
	if sess.CartID == "" {
		return nil, nil
	}
	cart, err := s.client(st).Cart(ctx, sess.CartID)
	if err != nil {
		if medusa.IsNotFound(err) {
			logger.From(ctx).Infow("dropping unknown cart", "cart", sess.CartID)
			sess.SetCartID("")
			return nil, nil
		}
		return nil, err
	}
	if cart.CompletedAt != nil {
		sess.SetCartID("")
		return nil, nil
	}
	return &cart, nil
}

// GetOrCreate returns the current cart, creating one in the visitor's region
// when needed.
func (s *Service) GetOrCreate(ctx context.Context, st stores.Store, sess *sessions.Session) (*medusa.Cart, error) {
	cart, err := s.Current(ctx, st, sess)
	if err != nil || cart != nil {
		return cart, err
	}
	region, err := s.Region(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	c := s.client(st)
	created, err := c.CreateCart(ctx, region.ID)
	if err != nil {
		return nil, err
	}
	sess.SetCartID(created.ID)
	if medusa.CustomerToken(ctx) != "" {
		if moved, err := c.TransferCart(ctx, created.ID); err == nil {
			created = moved
		} else {
			logger.From(ctx).Warnw("attach customer to new cart", "cart", created.ID, "err", err)
		}
	}
	return &created, nil
}

func (s *Service) AddItem(ctx context.Context, st stores.Store, sess *sessions.Session, variantID string, qty int) (*medusa.Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	cart, err := s.GetOrCreate(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	updated, err := s.client(st).AddLineItem(ctx, cart.ID, variantID, qty)
	if err != nil {
		return nil, err
	}
	usage.CartMutations.WithLabelValues("add_item").Inc()
	return &updated, nil
}

// UpdateItem sets the quantity of a line; 0 removes it.
func (s *Service) UpdateItem(ctx context.Context, st stores.Store, sess *sessions.Session, lineID string, qty int) (*medusa.Cart, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty == 0 {
		return s.RemoveItem(ctx, st, sess, lineID)
	}
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	updated, err := s.client(st).UpdateLineItem(ctx, cart.ID, lineID, qty)
	if err != nil {
		return nil, notFound(err, "line item "+lineID)
	}
	usage.CartMutations.WithLabelValues("update_item").Inc()
	return &updated, nil
}

func (s *Service) RemoveItem(ctx context.Context, st stores.Store, sess *sessions.Session, lineID string) (*medusa.Cart, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	updated, err := s.client(st).DeleteLineItem(ctx, cart.ID, lineID)
	if err != nil {
		return nil, notFound(err, "line item "+lineID)
	}
	usage.CartMutations.WithLabelValues("remove_item").Inc()
	return &updated, nil
}

// ApplyPromoCode adds code to the cart. The backend silently ignores unknown
// codes, so the code must show up among the cart's promotions afterwards.
func (s *Service) ApplyPromoCode(ctx context.Context, st stores.Store, sess *sessions.Session, code string) (*medusa.Cart, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidPromoCode
	}
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	updated, err := s.client(st).AddPromotions(ctx, cart.ID, []string{code})
	if err != nil {
		if medusa.IsInvalid(err) || medusa.IsNotFound(err) {
			return nil, ErrInvalidPromoCode
		}
		return nil, err
	}
	if !updated.HasPromotion(code) {
		return &updated, ErrInvalidPromoCode
	}
	usage.CartMutations.WithLabelValues("apply_promotion").Inc()
	return &updated, nil
}

func (s *Service) RemovePromoCode(ctx context.Context, st stores.Store, sess *sessions.Session, code string) (*medusa.Cart, error) {
	cart, err := s.requireCart(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	updated, err := s.client(st).RemovePromotions(ctx, cart.ID, []string{code})
	if err != nil {
		return nil, err
	}
	usage.CartMutations.WithLabelValues("remove_promotion").Inc()
	return &updated, nil
}

// SetRegion switches the visitor's country and moves an existing cart to the
// region serving it.
func (s *Service) SetRegion(ctx context.Context, st stores.Store, sess *sessions.Session, country string) error {
	country = strings.ToLower(strings.TrimSpace(country))
	region, err := s.regions.ForCountry(ctx, st, country)
	if err != nil {
		return err
	}
	if !regionHasCountry(region, country) {
		return ErrRegionNotFound
	}
	sess.SetCountry(country)
	cart, err := s.Current(ctx, st, sess)
	if err != nil || cart == nil || cart.RegionID == region.ID {
		return err
	}
	if _, err := s.client(st).UpdateCart(ctx, cart.ID, medusa.CartUpdate{RegionID: region.ID}); err != nil {
		return err
	}
	usage.CartMutations.WithLabelValues("set_region").Inc()
	return nil
}

func regionHasCountry(r medusa.Region, country string) bool {
	for _, c := range r.Countries {
		if strings.EqualFold(c.ISO2, country) {
			return true
		}
	}
	return false
}

// ItemCount sums line quantities.
func ItemCount(cart *medusa.Cart) int {
	if cart == nil {
		return 0
	}
	n := 0
	for _, li := range cart.Items {
		n += li.Quantity
	}
	return n
}

func (s *Service) requireCart(ctx context.Context, st stores.Store, sess *sessions.Session) (*medusa.Cart, error) {
	cart, err := s.Current(ctx, st, sess)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrNoCart
	}
	return cart, nil
}
