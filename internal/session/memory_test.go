package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapzone/storefront/internal/cart"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, ttl time.Duration) (*MemoryStore, *fakeClock) {
	t.Helper()
	store, err := NewMemoryStore(ttl, "", nil)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func snapshot(id string, price int64) cart.Snapshot {
	return cart.Snapshot{ProductID: id, Name: id, UnitPrice: decimal.NewFromInt(price)}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store, clock := newTestStore(t, time.Hour)
	ctx := context.Background()

	s := New(clock.Now())
	s.Cart.Add(snapshot("a", 100))
	s.Cart.Add(snapshot("a", 100))
	s.Auth = &Auth{UserID: "u1", Email: "a@example.com", AccessToken: "tok"}
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Cart.Count())
	assert.True(t, got.Cart.Total().Equal(decimal.NewFromInt(200)))
	require.NotNil(t, got.Auth)
	assert.Equal(t, "u1", got.Auth.UserID)

	// Loaded sessions are copies.
	got.Cart.Clear()
	again, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Cart.Count())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store, clock := newTestStore(t, time.Minute)
	ctx := context.Background()

	s := New(clock.Now())
	require.NoError(t, store.Save(ctx, s))

	clock.Advance(30 * time.Second)
	_, err := store.Update(ctx, s.ID, func(*Session) error { return nil })
	require.NoError(t, err)

	// Update slid the expiry forward.
	clock.Advance(45 * time.Second)
	_, err = store.Load(ctx, s.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreUpdateAbort(t *testing.T) {
	store, clock := newTestStore(t, time.Hour)
	ctx := context.Background()

	s := New(clock.Now())
	require.NoError(t, store.Save(ctx, s))

	boom := errors.New("boom")
	_, err := store.Update(ctx, s.ID, func(s *Session) error {
		s.Cart.Add(snapshot("a", 10))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Cart.IsEmpty())

	_, err = store.Update(ctx, "missing", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store, clock := newTestStore(t, time.Hour)
	ctx := context.Background()

	s := New(clock.Now())
	require.NoError(t, store.Save(ctx, s))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, s.ID, func(s *Session) error {
				s.Cart.Add(snapshot("a", 10))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Cart.Count())
	assert.Len(t, got.Cart.Lines, 1)
}

func TestMemoryStoreDelete(t *testing.T) {
	store, clock := newTestStore(t, time.Hour)
	ctx := context.Background()

	s := New(clock.Now())
	require.NoError(t, store.Save(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))

	_, err := store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewMemoryStoreRejectsBadSchedule(t *testing.T) {
	_, err := NewMemoryStore(time.Hour, "not a schedule", nil)
	assert.Error(t, err)

	store, err := NewMemoryStore(time.Hour, "@every 1m", nil)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(New(time.Now()).ID))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("abc"))
	assert.False(t, ValidID("{6ba7b810-9dad-11d1-80b4-00c04fd430c8}"))
}
