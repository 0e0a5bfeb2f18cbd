package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/snapzone/storefront/supabase"
)

// Store is the product persistence boundary.
type Store interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Featured(ctx context.Context, limit int) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	ListNewest(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p NewProduct) (*Product, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("product not found")

// SupabaseStore keeps products in the PostgREST products table. Calls run
// under the access token carried by ctx, if any.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore creates a store over client.
func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// List runs one filtered, ordered listing query.
func (s *SupabaseStore) List(ctx context.Context, f Filter) ([]Product, error) {
	var rows []Product
	q := f.Apply(s.client.From(Table).Select("*"))
	if err := q.ExecuteInto(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return rows, nil
}

// Featured returns up to limit featured products.
func (s *SupabaseStore) Featured(ctx context.Context, limit int) ([]Product, error) {
	var rows []Product
	err := s.client.From(Table).
		Select("*").
		Eq("featured", true).
		Limit(limit).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("featured products: %w", err)
	}
	return rows, nil
}

// Get loads one product.
func (s *SupabaseStore) Get(ctx context.Context, id string) (*Product, error) {
	var rows []Product
	err := s.client.From(Table).
		Select("*").
		Eq("id", id).
		Limit(1).
		ExecuteInto(ctx, &rows)
	if err != nil {
		if isInvalidID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListNewest returns every product, newest first.
func (s *SupabaseStore) ListNewest(ctx context.Context) ([]Product, error) {
	var rows []Product
	err := s.client.From(Table).
		Select("*").
		Order("created_at", supabase.OrderDesc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return rows, nil
}

// Create inserts a product and returns the stored row.
func (s *SupabaseStore) Create(ctx context.Context, p NewProduct) (*Product, error) {
	var rows []Product
	if err := s.client.From(Table).Insert(p).ExecuteInto(ctx, &rows); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create product: empty response")
	}
	return &rows[0], nil
}

// Delete removes a product, reporting whether a row matched.
func (s *SupabaseStore) Delete(ctx context.Context, id string) (bool, error) {
	var rows []Product
	if err := s.client.From(Table).Delete().Eq("id", id).ExecuteInto(ctx, &rows); err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete product: %w", err)
	}
	return len(rows) > 0, nil
}

// isInvalidID matches PostgREST's rejection of an id that is not a UUID
// (Postgres invalid_text_representation).
func isInvalidID(err error) bool {
	var apiErr *supabase.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.Code == "22P02"
}
