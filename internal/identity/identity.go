// Package identity holds the signed-in user: registration, password sign-in,
// sign-out, token refresh, bearer resolution and the admin policy.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/session"
	"github.com/snapzone/storefront/internal/validation"
	"github.com/snapzone/storefront/supabase"
)

// RefreshWindow is how close to expiry an access token is refreshed.
const RefreshWindow = 30 * time.Second

// Identity is the resolved user behind a request.
type Identity struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	IsAdmin  bool   `json:"is_admin"`
}

// Options configures a Service.
type Options struct {
	// AdminEmails are compared exactly, case included.
	AdminEmails []string
	// JWTSecret enables local HS256 verification of bearer tokens.
	JWTSecret string
}

// Service owns identity operations.
type Service struct {
	auth      *supabase.AuthClient
	profiles  ProfileStore
	admins    map[string]struct{}
	jwtSecret []byte
	logger    *logging.Logger
	now       func() time.Time

	subMu  sync.RWMutex
	subs   map[int]func(Event)
	nextID int
}

// NewService creates an identity service.
func NewService(client *supabase.Client, profiles ProfileStore, opts Options, logger *logging.Logger) *Service {
	admins := make(map[string]struct{}, len(opts.AdminEmails))
	for _, email := range opts.AdminEmails {
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	s := &Service{
		auth:     client.Auth(),
		profiles: profiles,
		admins:   admins,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
	if opts.JWTSecret != "" {
		s.jwtSecret = []byte(opts.JWTSecret)
	}
	return s
}

// =============================================================================
// Admin policy
// =============================================================================

// IsAdmin is true when email is a configured admin email or role is admin.
func (s *Service) IsAdmin(email, role string) bool {
	if role == RoleAdmin {
		return true
	}
	if email == "" {
		return false
	}
	_, ok := s.admins[email]
	return ok
}

// Identity derives the public identity from session auth. A nil auth has no
// identity.
func (s *Service) Identity(a *session.Auth) *Identity {
	if a == nil || a.UserID == "" {
		return nil
	}
	role := a.Role
	if role == "" {
		role = RoleCustomer
	}
	return &Identity{
		UserID:   a.UserID,
		Email:    a.Email,
		FullName: a.FullName,
		Role:     role,
		IsAdmin:  s.IsAdmin(a.Email, role),
	}
}

// =============================================================================
// Registration and sign-in
// =============================================================================

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register creates an account and its customer profile. The returned auth is
// nil when the project requires email confirmation before sign-in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*session.Auth, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}

	resp, err := s.auth.SignUp(ctx, supabase.SignUpRequest{
		Email:    in.Email,
		Password: in.Password,
		Data:     map[string]any{"full_name": in.FullName},
	})
	if err != nil {
		return nil, s.authError(ctx, "Registration failed", err)
	}

	if resp.User != nil {
		profileCtx := supabase.WithAccessToken(ctx, resp.AccessToken)
		err := s.profiles.Create(profileCtx, Profile{
			ID:       resp.User.ID,
			Email:    in.Email,
			FullName: in.FullName,
			Role:     RoleCustomer,
		})
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"user_id": resp.User.ID,
			}).Warn("Failed to create user profile")
		}
		s.emit(Event{Type: EventUserRegistered, UserID: resp.User.ID, Email: in.Email})
	}

	if resp.AccessToken == "" {
		return nil, nil
	}
	a := s.authFromSession(resp, in.FullName, RoleCustomer)
	s.emit(Event{Type: EventSignedIn, UserID: a.UserID, Email: a.Email})
	return a, nil
}

// SignIn exchanges email and password for a session. A rejected credential
// is reported as such; no account is created on failure.
func (s *Service) SignIn(ctx context.Context, email, password string) (*session.Auth, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	resp, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		status := supabase.StatusCode(err)
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			s.logger.LogSecurityEvent(ctx, "sign_in_rejected", map[string]interface{}{"email": email})
			return nil, svcerrors.Unauthorized("Invalid email or password")
		}
		return nil, s.authError(ctx, "Sign-in failed", err)
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, svcerrors.Upstream("Sign-in failed", fmt.Errorf("token response without session"))
	}

	fullName, role := s.loadProfile(supabase.WithAccessToken(ctx, resp.AccessToken), resp.User)
	a := s.authFromSession(resp, fullName, role)
	s.emit(Event{Type: EventSignedIn, UserID: a.UserID, Email: a.Email})
	return a, nil
}

// SignOut revokes the session at the auth server when possible. Local state
// is the caller's to clear and must be cleared even when this logs an error.
func (s *Service) SignOut(ctx context.Context, a *session.Auth) {
	if a == nil {
		return
	}
	if a.AccessToken != "" {
		if err := s.auth.SignOut(ctx, a.AccessToken); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Remote sign-out failed")
		}
	}
	s.emit(Event{Type: EventSignedOut, UserID: a.UserID, Email: a.Email})
}

// Current returns a usable session auth, refreshing the access token when it
// is within RefreshWindow of expiry. A nil result with a nil error means the
// refresh token was rejected and the identity is gone.
func (s *Service) Current(ctx context.Context, a *session.Auth) (*session.Auth, error) {
	if a == nil {
		return nil, nil
	}
	if a.ExpiresAt.IsZero() || s.now().Add(RefreshWindow).Before(a.ExpiresAt) {
		return a, nil
	}
	if a.RefreshToken == "" {
		s.emit(Event{Type: EventSignedOut, UserID: a.UserID, Email: a.Email})
		return nil, nil
	}

	resp, err := s.auth.RefreshToken(ctx, a.RefreshToken)
	if err != nil {
		status := supabase.StatusCode(err)
		if status >= 400 && status < 500 {
			s.logger.WithContext(ctx).WithError(err).Info("Refresh token rejected")
			s.emit(Event{Type: EventSignedOut, UserID: a.UserID, Email: a.Email})
			return nil, nil
		}
		return a, svcerrors.Upstream("Session refresh failed", err)
	}

	refreshed := *a
	refreshed.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		refreshed.RefreshToken = resp.RefreshToken
	}
	refreshed.ExpiresAt = s.expiry(resp)
	s.emit(Event{Type: EventTokenRefreshed, UserID: a.UserID, Email: a.Email})
	return &refreshed, nil
}

// =============================================================================
// Bearer tokens
// =============================================================================

type accessClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Resolve returns the identity behind an access token presented as a bearer
// credential.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, svcerrors.Unauthorized("Missing access token")
	}

	var user *supabase.User
	if s.jwtSecret != nil {
		claims, err := s.validateToken(token)
		if err != nil {
			return nil, err
		}
		user = &supabase.User{ID: claims.Subject, Email: claims.Email, UserMetadata: claims.UserMetadata}
	} else {
		u, err := s.auth.GetUser(ctx, token)
		if err != nil {
			if supabase.StatusCode(err) == http.StatusUnauthorized || supabase.StatusCode(err) == http.StatusForbidden {
				return nil, svcerrors.InvalidToken(err)
			}
			return nil, svcerrors.Upstream("Identity lookup failed", err)
		}
		user = u
	}
	if user.ID == "" {
		return nil, svcerrors.InvalidToken(nil).WithDetails("reason", "token has no subject")
	}

	fullName, role := s.loadProfile(supabase.WithAccessToken(ctx, token), user)
	return &Identity{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: fullName,
		Role:     role,
		IsAdmin:  s.IsAdmin(user.Email, role),
	}, nil
}

func (s *Service) validateToken(tokenString string) (*accessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, svcerrors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, svcerrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, svcerrors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok {
		return nil, svcerrors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	return claims, nil
}

// =============================================================================
// Helpers
// =============================================================================

// loadProfile returns the profile name and role, falling back to auth
// metadata and the customer role when no profile row is readable.
func (s *Service) loadProfile(ctx context.Context, user *supabase.User) (string, string) {
	fullName := ""
	if v, ok := user.UserMetadata["full_name"].(string); ok {
		fullName = v
	}

	p, err := s.profiles.Get(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"user_id": user.ID,
			}).Warn("Failed to load user profile")
		}
		return fullName, RoleCustomer
	}
	if p.FullName != "" {
		fullName = p.FullName
	}
	role := p.Role
	if role == "" {
		role = RoleCustomer
	}
	return fullName, role
}

func (s *Service) authFromSession(resp *supabase.Session, fullName, role string) *session.Auth {
	a := &session.Auth{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.expiry(resp),
		FullName:     fullName,
		Role:         role,
	}
	if resp.User != nil {
		a.UserID = resp.User.ID
		a.Email = resp.User.Email
	}
	return a
}

func (s *Service) expiry(resp *supabase.Session) time.Time {
	if resp.ExpiresAt > 0 {
		return time.Unix(resp.ExpiresAt, 0).UTC()
	}
	if resp.ExpiresIn > 0 {
		return s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return time.Time{}
}

// authError maps auth server failures: client errors carry the server's
// message, everything else is a generic upstream failure.
func (s *Service) authError(ctx context.Context, message string, err error) error {
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
		return svcerrors.Validation(apiErr.Message)
	}
	s.logger.WithContext(ctx).WithError(err).Error(message)
	return svcerrors.Upstream(message, err)
}

var validate = validation.New()

func validateCredentials(email, password string) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "required"
	} else if err := validate.Var(email, "email"); err != nil {
		fields["email"] = "invalid email address"
	}
	if password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return svcerrors.FieldErrors("Invalid credentials", fields)
	}
	return nil
}
