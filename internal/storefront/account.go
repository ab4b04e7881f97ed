package storefront

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/medusa"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
)

var (
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
)

// Login authenticates the customer, keeps the token in the session and hands
// the visitor's cart over to the customer.
func (s *Service) Login(ctx context.Context, st stores.Store, sess *sessions.Session, email, password string) error {
	c := s.client(st)
	token, err := c.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		if medusa.IsUnauthorized(err) || medusa.IsInvalid(err) {
			return ErrInvalidCredentials
		}
		return err
	}
	sess.Regenerate()
	sess.SetCustomerToken(token)
	if sess.CartID == "" {
		return nil
	}
	if _, err := c.TransferCart(medusa.WithCustomerToken(ctx, token), sess.CartID); err != nil {
		// the session stays signed in; the cart is still usable anonymously
		logger.From(ctx).Warnw("transfer cart to customer", "cart", sess.CartID, "err", err)
		if medusa.IsNotFound(err) {
			sess.SetCartID("")
		}
	}
	return nil
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates the auth identity and the customer record, then signs in.
func (s *Service) Register(ctx context.Context, st stores.Store, sess *sessions.Session, in RegisterInput) error {
	c := s.client(st)
	email := strings.TrimSpace(in.Email)
	regToken, err := c.RegisterIdentity(ctx, email, in.Password)
	if err != nil {
		if medusa.IsUnauthorized(err) || medusa.IsInvalid(err) {
			if strings.Contains(strings.ToLower(medusa.Message(err)), "exists") {
				return ErrEmailTaken
			}
		}
		return err
	}
	_, err = c.CreateCustomer(medusa.WithCustomerToken(ctx, regToken), medusa.CustomerCreate{
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return err
	}
	return s.Login(ctx, st, sess, email, in.Password)
}

// Logout forgets the customer and their cart.
func (s *Service) Logout(sess *sessions.Session) {
	sess.Regenerate()
	sess.SetCustomerToken("")
	sess.SetCartID("")
}

// Customer returns the signed-in customer. A token that expired or that the
// backend refuses is dropped from the session.
func (s *Service) Customer(ctx context.Context, st stores.Store, sess *sessions.Session) (medusa.Customer, error) {
	token := medusa.CustomerToken(ctx)
	if token == "" {
		return medusa.Customer{}, ErrNotAuthenticated
	}
	if !middleware.TokenUsable(token, time.Now()) {
		sess.SetCustomerToken("")
		return medusa.Customer{}, ErrNotAuthenticated
	}
	cus, err := s.client(st).Me(ctx)
	if err != nil {
		if medusa.IsUnauthorized(err) {
			sess.SetCustomerToken("")
			return medusa.Customer{}, ErrNotAuthenticated
		}
		return medusa.Customer{}, err
	}
	return cus, nil
}

func (s *Service) UpdateProfile(ctx context.Context, st stores.Store, upd medusa.CustomerUpdate) (medusa.Customer, error) {
	if medusa.CustomerToken(ctx) == "" {
		return medusa.Customer{}, ErrNotAuthenticated
	}
	return s.client(st).UpdateMe(ctx, upd)
}

func (s *Service) Addresses(ctx context.Context, st stores.Store) ([]medusa.Address, error) {
	if medusa.CustomerToken(ctx) == "" {
		return nil, ErrNotAuthenticated
	}
	return s.client(st).Addresses(ctx)
}

func (s *Service) AddAddress(ctx context.Context, st stores.Store, a medusa.Address) error {
	if medusa.CustomerToken(ctx) == "" {
		return ErrNotAuthenticated
	}
	a.CountryCode = strings.ToLower(a.CountryCode)
	if !a.Complete() {
		return ErrIncompleteAddress
	}
	_, err := s.client(st).AddAddress(ctx, a)
	return err
}

func (s *Service) UpdateAddress(ctx context.Context, st stores.Store, id string, a medusa.Address) error {
	if medusa.CustomerToken(ctx) == "" {
		return ErrNotAuthenticated
	}
	a.CountryCode = strings.ToLower(a.CountryCode)
	if !a.Complete() {
		return ErrIncompleteAddress
	}
	_, err := s.client(st).UpdateAddress(ctx, id, a)
	return notFound(err, "address "+id)
}

func (s *Service) DeleteAddress(ctx context.Context, st stores.Store, id string) error {
	if medusa.CustomerToken(ctx) == "" {
		return ErrNotAuthenticated
	}
	return notFound(s.client(st).DeleteAddress(ctx, id), "address "+id)
}

const OrdersPageSize = 10

type OrderPage struct {
	Orders     []medusa.Order
	Page       int
	TotalPages int
}

func (p OrderPage) HasPrev() bool { return p.Page > 1 }
func (p OrderPage) HasNext() bool { return p.Page < p.TotalPages }

// Orders lists the customer's orders, newest first.
func (s *Service) Orders(ctx context.Context, st stores.Store, page int) (OrderPage, error) {
	if medusa.CustomerToken(ctx) == "" {
		return OrderPage{}, ErrNotAuthenticated
	}
	if page < 1 {
		page = 1
	}
	list, err := s.client(st).ListOrders(ctx, OrdersPageSize, (page-1)*OrdersPageSize)
	if err != nil {
		return OrderPage{}, err
	}
	pages := (list.Count + OrdersPageSize - 1) / OrdersPageSize
	if pages < 1 {
		pages = 1
	}
	return OrderPage{Orders: list.Orders, Page: page, TotalPages: pages}, nil
}

// CustomerOrder returns one of the signed-in customer's orders.
func (s *Service) CustomerOrder(ctx context.Context, st stores.Store, id string) (medusa.Order, error) {
	if medusa.CustomerToken(ctx) == "" {
		return medusa.Order{}, ErrNotAuthenticated
	}
	return s.Order(ctx, st, id)
}
