package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Get for unknown or expired ids.
var ErrNotFound = errors.New("session not found")

// Toast levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Toast is a one-shot message shown on the next rendered page.
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is the per-visitor view state referenced by the session cookie.
type Session struct {
	ID            string    `json:"id"`
	CartID        string    `json:"cart_id,omitempty"`
	CustomerToken string    `json:"customer_token,omitempty"`
	CountryCode   string    `json:"country_code,omitempty"`
	Toasts        []Toast   `json:"toasts,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`

	dirty    bool
	replaced string
}

// New returns an empty session with a fresh random id.
func New() *Session {
	return &Session{ID: uuid.NewString(), dirty: true}
}

func (s *Session) SetCartID(id string) {
	if s.CartID != id {
		s.CartID = id
		s.dirty = true
	}
}

func (s *Session) SetCustomerToken(tok string) {
	if s.CustomerToken != tok {
		s.CustomerToken = tok
		s.dirty = true
	}
}

func (s *Session) SetCountry(code string) {
	if s.CountryCode != code {
		s.CountryCode = code
		s.dirty = true
	}
}

// Push queues a toast for the next page view.
func (s *Session) Push(level, message string) {
	s.Toasts = append(s.Toasts, Toast{Level: level, Message: message})
	s.dirty = true
}

// Drain returns queued toasts and clears them.
func (s *Session) Drain() []Toast {
	if len(s.Toasts) == 0 {
		return nil
	}
	out := s.Toasts
	s.Toasts = nil
	s.dirty = true
	return out
}

// IsZero reports whether the session holds no state worth keeping.
func (s *Session) IsZero() bool {
	return s.CartID == "" && s.CustomerToken == "" && s.CountryCode == "" && len(s.Toasts) == 0
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// Clean marks the session as persisted.
func (s *Session) Clean() { s.dirty = false }

// Regenerate moves the session to a fresh id. Call it whenever the signed-in
// identity changes so a cookie issued before the change stops working.
func (s *Session) Regenerate() {
	if s.replaced == "" {
		s.replaced = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

// Replaced returns the id given up by Regenerate, or "" when the id is unchanged.
func (s *Session) Replaced() string { return s.replaced }

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
