package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/session"
	"github.com/snapzone/storefront/supabase"
)

const testSecret = "middleware-test-secret"

type refreshServer struct {
	mu       sync.Mutex
	refreshs int
}

func (f *refreshServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "refresh_token" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f.mu.Lock()
	f.refreshs++
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-new",
		"refresh_token": "refresh-new",
		"token_type":    "bearer",
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"user":          map[string]any{"id": "u1", "email": "shopper@example.com"},
	})
}

func newIdentityStack(t *testing.T, admins ...string) (*identity.Service, *session.MemoryStore, *refreshServer) {
	t.Helper()
	fake := &refreshServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon"})
	if err != nil {
		t.Fatalf("supabase.New: %v", err)
	}
	profiles := identity.NewMemoryProfiles(identity.Profile{ID: "admin-1", Email: "ops@example.com", Role: identity.RoleAdmin})
	ids := identity.NewService(client, profiles, identity.Options{AdminEmails: admins, JWTSecret: testSecret}, testLogger())

	store, err := session.NewMemoryStore(time.Hour, "", testLogger())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return ids, store, fake
}

func signToken(t *testing.T, sub, email string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// chain runs session then identity middleware in front of h.
func chain(store session.Store, ids *identity.Service, h http.Handler) http.Handler {
	sm := NewSessionMiddleware(store, time.Hour, false, testLogger())
	im := NewIdentityMiddleware(ids, store, testLogger())
	return sm.Handler(im.Handler(h))
}

func TestSessionMiddlewareIssuesAndReusesCookie(t *testing.T) {
	store, err := session.NewMemoryStore(time.Hour, "", testLogger())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	defer store.Close()

	var seen string
	h := NewSessionMiddleware(store, time.Hour, true, testLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSession(r.Context()).ID
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName || cookies[0].Value != seen {
		t.Fatalf("unexpected cookies %+v (session %q)", cookies, seen)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("cookie flags not set: %+v", cookies[0])
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d", store.Len())
	}

	first := seen
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: first})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != first {
		t.Fatalf("session not reused: %q != %q", seen, first)
	}

	for _, bogus := range []string{"not-a-uuid", "0b9f3c1e-7a52-4f57-9d2e-1c7f6f0b2a11"} {
		req = httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: bogus})
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bogus || seen == first {
			t.Fatalf("cookie %q: expected a fresh session, got %q", bogus, seen)
		}
	}
}

func TestIdentityFromBearerToken(t *testing.T) {
	ids, store, _ := newIdentityStack(t)

	var got *identity.Identity
	var token string
	h := chain(store, ids, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
		token = supabase.AccessTokenFromContext(r.Context())
		if logging.GetUserID(r.Context()) != "admin-1" {
			t.Errorf("user id missing from log context")
		}
	}))

	bearer := signToken(t, "admin-1", "ops@example.com")
	req := httptest.NewRequest(http.MethodGet, "/admin/products", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || got == nil {
		t.Fatalf("status %d identity %+v", rec.Code, got)
	}
	if !got.IsAdmin || got.Role != identity.RoleAdmin {
		t.Fatalf("expected admin identity, got %+v", got)
	}
	if token != bearer {
		t.Fatalf("access token not attached")
	}
}

func TestIdentityRejectsBadAuthorization(t *testing.T) {
	ids, store, _ := newIdentityStack(t)
	h := chain(store, ids, okHandler)

	for _, header := range []string{"Basic abc", "Bearer", "Bearer not.a.jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status %d", header, rec.Code)
		}
	}
}

func TestIdentityFromSessionRefreshesAndPersists(t *testing.T) {
	ids, store, fake := newIdentityStack(t)
	ctx := context.Background()

	s := session.New(time.Now())
	s.Auth = &session.Auth{
		UserID:       "u1",
		Email:        "shopper@example.com",
		Role:         identity.RoleCustomer,
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(10 * time.Second),
	}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	var got *identity.Identity
	var token string
	h := chain(store, ids, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetIdentity(r.Context())
		token = supabase.AccessTokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.UserID != "u1" || got.IsAdmin {
		t.Fatalf("identity = %+v", got)
	}
	if token != "access-new" || fake.refreshs != 1 {
		t.Fatalf("token %q after %d refreshes", token, fake.refreshs)
	}
	stored, err := store.Load(ctx, s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Auth == nil || stored.Auth.RefreshToken != "refresh-new" {
		t.Fatalf("refreshed auth not persisted: %+v", stored.Auth)
	}
}

func TestRequireAdmin(t *testing.T) {
	gate := RequireAdmin(testLogger())(okHandler)

	cases := []struct {
		name       string
		id         *identity.Identity
		html       bool
		wantStatus int
		wantTarget string
	}{
		{"anonymous json", nil, false, http.StatusUnauthorized, LoginPath},
		{"anonymous browser", nil, true, http.StatusSeeOther, LoginPath},
		{"customer json", &identity.Identity{UserID: "u1"}, false, http.StatusForbidden, HomePath},
		{"customer browser", &identity.Identity{UserID: "u1"}, true, http.StatusSeeOther, HomePath},
		{"admin", &identity.Identity{UserID: "a1", IsAdmin: true}, false, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tc.html {
				req.Header.Set("Accept", "text/html,application/xhtml+xml")
			}
			if tc.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), tc.id))
			}
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			switch {
			case tc.html:
				if loc := rec.Header().Get("Location"); loc != tc.wantTarget {
					t.Fatalf("Location = %q", loc)
				}
			case tc.wantTarget != "":
				_, details := errorCode(t, rec)
				if details["redirect"] != tc.wantTarget {
					t.Fatalf("redirect detail = %v", details["redirect"])
				}
			}
		})
	}
}
