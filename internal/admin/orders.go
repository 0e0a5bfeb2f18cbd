package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snapzone/storefront/internal/checkout"
	"github.com/snapzone/storefront/supabase"
)

// OrderStore lists placed orders.
type OrderStore interface {
	ListNewest(ctx context.Context) ([]checkout.Order, error)
}

// SupabaseOrders reads the orders table under the caller's access token.
type SupabaseOrders struct {
	client *supabase.Client
}

// NewSupabaseOrders creates an order store.
func NewSupabaseOrders(client *supabase.Client) *SupabaseOrders {
	return &SupabaseOrders{client: client}
}

// ListNewest returns every order, newest first.
func (s *SupabaseOrders) ListNewest(ctx context.Context) ([]checkout.Order, error) {
	var rows []checkout.Order
	err := s.client.From(checkout.OrdersTable).
		Select("*").
		Order("created_at", supabase.OrderDesc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return rows, nil
}

// MemoryOrders is an in-process order store. It also satisfies
// checkout.OrderWriter so local runs can place and list orders.
type MemoryOrders struct {
	mu     sync.Mutex
	orders []checkout.Order
	lines  map[string][]checkout.OrderLine
	seq    int
	now    func() time.Time
}

// NewMemoryOrders creates an empty order store.
func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{lines: make(map[string][]checkout.OrderLine), now: time.Now}
}

// WriteOrder stores the order and its lines together.
func (m *MemoryOrders) WriteOrder(_ context.Context, o checkout.Order, lines []checkout.OrderLine) (*checkout.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	now := m.now()
	o.ID = fmt.Sprintf("order-%d", m.seq)
	o.CreatedAt = &now
	o.UpdatedAt = &now

	stored := make([]checkout.OrderLine, len(lines))
	for i, l := range lines {
		l.OrderID = o.ID
		stored[i] = l
	}
	m.orders = append(m.orders, o)
	m.lines[o.ID] = stored
	return &o, nil
}

// ListNewest returns orders newest first.
func (m *MemoryOrders) ListNewest(_ context.Context) ([]checkout.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]checkout.Order, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		out = append(out, m.orders[i])
	}
	return out, nil
}

// Lines returns the stored lines of an order.
func (m *MemoryOrders) Lines(orderID string) []checkout.OrderLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]checkout.OrderLine(nil), m.lines[orderID]...)
}
