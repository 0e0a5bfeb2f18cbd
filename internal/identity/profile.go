package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/snapzone/storefront/supabase"
)

// ProfileTable holds one row per registered user.
const ProfileTable = "users"

// Roles stored in the profile table.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ErrProfileNotFound is returned when a user has no profile row.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is a row of the users table.
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ProfileStore reads and writes profile rows.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Create(ctx context.Context, p Profile) error
}

// SupabaseProfiles keeps profiles in PostgREST. Calls run under the access
// token carried by ctx.
type SupabaseProfiles struct {
	client *supabase.Client
}

// NewSupabaseProfiles creates a profile store.
func NewSupabaseProfiles(client *supabase.Client) *SupabaseProfiles {
	return &SupabaseProfiles{client: client}
}

// Get loads a profile.
func (s *SupabaseProfiles) Get(ctx context.Context, userID string) (*Profile, error) {
	var rows []Profile
	err := s.client.From(ProfileTable).
		Select("id,email,full_name,role,created_at").
		Eq("id", userID).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrProfileNotFound
	}
	return &rows[0], nil
}

// Create inserts a customer profile under the caller's token. Without one
// (sign-up pending email confirmation) the service key is used when
// configured. Other roles are only written by UpsertAsOperator.
func (s *SupabaseProfiles) Create(ctx context.Context, p Profile) error {
	if p.Role != RoleCustomer {
		return fmt.Errorf("create profile: role %q is not self-assignable", p.Role)
	}
	q := s.client.From(ProfileTable).Insert(p)
	if supabase.AccessTokenFromContext(ctx) == "" && s.client.HasServiceKey() {
		q = q.WithServiceKey()
	}
	if _, err := q.Execute(ctx); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpsertAsOperator writes a profile with the service key, bypassing row
// level security. Only operator tooling calls this.
func (s *SupabaseProfiles) UpsertAsOperator(ctx context.Context, p Profile) error {
	if !s.client.HasServiceKey() {
		return fmt.Errorf("upsert profile: service key is not configured")
	}
	_, err := s.client.From(ProfileTable).
		Upsert(p, "id").
		WithServiceKey().
		Execute(ctx)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// MemoryProfiles is an in-process ProfileStore for tests and local runs.
type MemoryProfiles struct {
	mu   sync.Mutex
	rows map[string]Profile
	err  error
}

// NewMemoryProfiles creates a store seeded with profiles.
func NewMemoryProfiles(profiles ...Profile) *MemoryProfiles {
	m := &MemoryProfiles{rows: make(map[string]Profile)}
	for _, p := range profiles {
		m.rows[p.ID] = p
	}
	return m
}

// SetErr makes the next call fail with err.
func (m *MemoryProfiles) SetErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemoryProfiles) takeErr() error {
	err := m.err
	m.err = nil
	return err
}

// Get returns a stored profile.
func (m *MemoryProfiles) Get(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	p, ok := m.rows[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// Create stores a profile; duplicates are rejected like a primary key.
func (m *MemoryProfiles) Create(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	if _, ok := m.rows[p.ID]; ok {
		return supabase.NewError("23505", "duplicate key value violates unique constraint", 409)
	}
	m.rows[p.ID] = p
	return nil
}
