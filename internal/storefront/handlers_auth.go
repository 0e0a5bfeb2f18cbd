package storefront

import (
	"context"
	"net/http"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/middleware"
	"github.com/snapzone/storefront/internal/session"
)

// =============================================================================
// Account Handlers
// =============================================================================

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"page":          "login",
		"authenticated": middleware.GetIdentity(r.Context()) != nil,
		"login":         "/auth/login",
		"register":      "/auth/register",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in identity.RegisterInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	ctx := r.Context()
	auth, err := s.ids.Register(ctx, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	// No tokens means the account waits for email confirmation.
	if auth == nil {
		httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"confirmation_required": true,
			"message":               "Check your email to confirm your account.",
		})
		return
	}

	if err := s.signIn(ctx, w, auth); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"confirmation_required": false,
		"identity":              s.ids.Identity(auth),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	auth, err := s.ids.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := s.signIn(ctx, w, auth); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	id := s.ids.Identity(auth)
	redirect := "/"
	if id.IsAdmin {
		redirect = "/admin/products"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"identity": id,
		"redirect": redirect,
	})
}

// handleLogout always clears the local identity; the cart survives.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.GetSession(ctx)
	if sess.Auth != nil {
		s.ids.SignOut(ctx, sess.Auth)
	}
	if err := s.setAuth(ctx, nil); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"signed_out": true,
		"redirect":   "/",
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": id != nil,
		"identity":      id,
		"cart_count":    viewCart(middleware.GetSession(r.Context()).Cart).Count,
	})
}

// signIn moves the visitor to a fresh session id carrying the current cart
// and auth, so an id issued before sign-in never holds an identity.
func (s *Server) signIn(ctx context.Context, w http.ResponseWriter, auth *session.Auth) error {
	old := middleware.GetSession(ctx)
	current, err := s.sessions.Load(ctx, old.ID)
	if err != nil {
		current = old
	}

	fresh := session.New(s.now())
	fresh.Cart = current.Cart.Clone()
	fresh.Auth = auth
	if err := s.sessions.Save(ctx, fresh); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Saving session identity failed")
		return svcerrors.Upstream("Could not save your session. Please try again.", err)
	}
	if err := s.sessions.Delete(ctx, old.ID); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Deleting replaced session failed")
	}
	s.cookies.Issue(w, fresh.ID)
	return nil
}

func (s *Server) setAuth(ctx context.Context, auth *session.Auth) error {
	sess := middleware.GetSession(ctx)
	_, err := s.sessions.Update(ctx, sess.ID, func(stored *session.Session) error {
		stored.Auth = auth
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Saving session identity failed")
		return svcerrors.Upstream("Could not save your session. Please try again.", err)
	}
	return nil
}
