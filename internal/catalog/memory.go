package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same filter and sort
// semantics as the remote table. Tests and local runs use it.
type MemoryStore struct {
	mu       sync.Mutex
	products []Product
	now      func() time.Time
	errs     map[string]error
}

// NewMemoryStore creates a store holding products.
func NewMemoryStore(products ...Product) *MemoryStore {
	m := &MemoryStore{now: time.Now, errs: map[string]error{}}
	m.products = append(m.products, products...)
	return m
}

// SetErr makes the next call to method fail with err.
func (m *MemoryStore) SetErr(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

func (m *MemoryStore) takeErr(method string) error {
	err := m.errs[method]
	delete(m.errs, method)
	return err
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("List"); err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Material != "" && p.Material != f.Material {
			continue
		}
		if f.Size != "" && p.Size != f.Size {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}

	switch ParseSortKey(string(f.SortBy)) {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	default:
		sort.SliceStable(out, func(i, j int) bool { return strings.Compare(out[i].Name, out[j].Name) < 0 })
	}
	return out, nil
}

func (m *MemoryStore) Featured(_ context.Context, limit int) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("Featured"); err != nil {
		return nil, err
	}

	out := []Product{}
	for _, p := range m.products {
		if p.Featured && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("Get"); err != nil {
		return nil, err
	}

	for _, p := range m.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListNewest(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("ListNewest"); err != nil {
		return nil, err
	}

	out := append([]Product(nil), m.products...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, np NewProduct) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("Create"); err != nil {
		return nil, err
	}

	now := m.now()
	p := Product{
		ID:            uuid.NewString(),
		Name:          np.Name,
		Description:   np.Description,
		Price:         np.Price,
		ImageURL:      np.ImageURL,
		Category:      np.Category,
		Material:      np.Material,
		Size:          np.Size,
		Dimensions:    np.Dimensions,
		StockQuantity: np.StockQuantity,
		Featured:      np.Featured,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.products = append(m.products, p)
	return &p, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr("Delete"); err != nil {
		return false, err
	}

	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
