package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/snapzone/storefront/internal/logging"
)

// MemoryStore keeps sessions in process. Entries idle longer than the TTL
// are dropped by a sweep scheduled with cron.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	cron    *cron.Cron
	logger  *logging.Logger
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a store and starts its sweep on schedule (a cron
// spec such as "@every 1m"). An empty schedule disables the sweep.
func NewMemoryStore(ttl time.Duration, schedule string, logger *logging.Logger) (*MemoryStore, error) {
	m := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
	if schedule != "" {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(schedule, func() { m.Sweep() }); err != nil {
			return nil, fmt.Errorf("schedule session sweep: %w", err)
		}
		m.cron.Start()
	}
	return m, nil
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id)
}

func (m *MemoryStore) loadLocked(id string) (*Session, error) {
	e, ok := m.entries[id]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.ensure()
	return &s, nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(s)
}

func (m *MemoryStore) saveLocked(s *Session) error {
	now := m.now()
	s.UpdatedAt = now
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.entries[s.ID] = memoryEntry{data: data, expiresAt: now.Add(m.ttl)}
	return nil
}

// Update runs fn under the store lock.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := m.saveLocked(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	if removed > 0 && m.logger != nil {
		m.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": len(m.entries),
		}).Debug("Swept expired sessions")
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops the sweep.
func (m *MemoryStore) Close() error {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	return nil
}
