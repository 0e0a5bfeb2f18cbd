package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/session"
	"github.com/snapzone/storefront/supabase"
)

// WithIdentity stores the resolved identity in ctx.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity resolved for the request, or nil for an
// anonymous visitor.
func GetIdentity(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey).(*identity.Identity)
	return id
}

// IdentityMiddleware resolves who is calling. A bearer token wins over the
// session; a session identity is refreshed near expiry and written back.
// The caller's access token is attached to the context for row level
// security on downstream Supabase calls.
type IdentityMiddleware struct {
	ids    *identity.Service
	store  session.Store
	logger *logging.Logger
}

// NewIdentityMiddleware creates an identity middleware.
func NewIdentityMiddleware(ids *identity.Service, store session.Store, logger *logging.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{ids: ids, store: store, logger: logger}
}

// Handler returns the identity middleware handler
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var (
			id    *identity.Identity
			token string
		)

		if header := r.Header.Get("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				httputil.WriteError(w, r, errors.Unauthorized("Invalid Authorization header format"))
				return
			}
			resolved, err := m.ids.Resolve(ctx, parts[1])
			if err != nil {
				m.logger.WithContext(ctx).WithError(err).Warn("Token validation failed")
				httputil.WriteError(w, r, err)
				return
			}
			id, token = resolved, parts[1]
		} else if s := GetSession(ctx); s != nil && s.Auth != nil {
			current, err := m.ids.Current(ctx, s.Auth)
			if err != nil {
				m.logger.WithContext(ctx).WithError(err).Warn("Session refresh failed, keeping current token")
			}
			if current != s.Auth {
				m.persist(ctx, s, current)
			}
			if current != nil {
				id, token = m.ids.Identity(current), current.AccessToken
			}
		}

		if id != nil {
			ctx = WithIdentity(ctx, id)
			ctx = logging.WithUserID(ctx, id.UserID)
			ctx = logging.WithRole(ctx, id.Role)
			ctx = supabase.WithAccessToken(ctx, token)

			m.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"user_id":  id.UserID,
				"is_admin": id.IsAdmin,
			}).Debug("Authentication successful")
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// persist writes a refreshed or revoked auth back to the session.
func (m *IdentityMiddleware) persist(ctx context.Context, s *session.Session, auth *session.Auth) {
	s.Auth = auth
	_, err := m.store.Update(ctx, s.ID, func(stored *session.Session) error {
		stored.Auth = auth
		return nil
	})
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Persisting session identity failed")
	}
}
