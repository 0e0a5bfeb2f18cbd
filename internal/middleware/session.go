package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/session"
)

type contextKey int

const (
	sessionKey contextKey = iota
	identityKey
)

// WithSession stores the request's session in ctx.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session loaded for the request, or nil.
func GetSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// SessionMiddleware loads the visitor's session from the session cookie,
// issuing a new session when the cookie is missing, malformed or expired.
type SessionMiddleware struct {
	store  session.Store
	ttl    time.Duration
	secure bool
	logger *logging.Logger
	now    func() time.Time
}

// NewSessionMiddleware creates a session middleware. secure marks the cookie
// HTTPS only.
func NewSessionMiddleware(store session.Store, ttl time.Duration, secure bool, logger *logging.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		store:  store,
		ttl:    ttl,
		secure: secure,
		logger: logger,
		now:    time.Now,
	}
}

// Handler returns the session middleware handler
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var s *session.Session
		if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
			loaded, err := m.store.Load(ctx, c.Value)
			switch {
			case err == nil:
				s = loaded
			case errors.Is(err, session.ErrNotFound):
			default:
				m.logger.WithContext(ctx).WithError(err).Error("Session load failed")
				httputil.WriteError(w, r, errors.Upstream("Session unavailable. Please try again.", err))
				return
			}
		}

		if s == nil {
			s = session.New(m.now())
			if err := m.store.Save(ctx, s); err != nil {
				m.logger.WithContext(ctx).WithError(err).Error("Session create failed")
				httputil.WriteError(w, r, errors.Upstream("Session unavailable. Please try again.", err))
				return
			}
		}

		m.Issue(w, s.ID)
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
	})
}

// Issue sets the session cookie for id, replacing any session cookie already
// set on w.
func (m *SessionMiddleware) Issue(w http.ResponseWriter, id string) {
	w.Header().Del("Set-Cookie")
	http.SetCookie(w, m.cookie(id))
}

func (m *SessionMiddleware) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
