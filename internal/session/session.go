// Package session stores per-visitor state (the cart and the signed-in
// identity) behind an opaque cookie id.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/snapzone/storefront/internal/cart"
)

// CookieName is the session cookie.
const CookieName = "sf_session"

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Auth is the signed-in identity held by a session.
type Auth struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	Role         string    `json:"role,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Session is one visitor's state.
type Session struct {
	ID        string     `json:"id"`
	Cart      *cart.Cart `json:"cart"`
	Auth      *Auth      `json:"auth,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// New returns an empty session with a fresh id.
func New(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Cart:      cart.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ensure fills fields a decoded session may lack.
func (s *Session) ensure() {
	if s.Cart == nil {
		s.Cart = cart.New()
	}
	if s.Cart.Lines == nil {
		s.Cart.Lines = []cart.Line{}
	}
}

// Store persists sessions.
type Store interface {
	// Load returns the session or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)
	// Save writes the session, refreshing its expiry.
	Save(ctx context.Context, s *Session) error
	// Update applies fn to the stored session atomically and saves the
	// result. fn's error aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	// Delete removes the session.
	Delete(ctx context.Context, id string) error
	// Close releases background resources.
	Close() error
}

// ValidID reports whether id has the shape of an issued session id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
