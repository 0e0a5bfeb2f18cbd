package catalog

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
)

func testLogger() *logging.Logger {
	l := logging.New("catalog-test", "error", "json")
	l.SetOutput(io.Discard)
	return l
}

func seedProducts() []Product {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "p1", Name: "Walnut", Price: decimal.NewFromInt(300), Category: "wood", Material: "matt", Size: "8x10", Featured: true, CreatedAt: base},
		{ID: "p2", Name: "Aspen", Price: decimal.NewFromInt(120), Category: "wood", Material: "glassy", Size: "5x7", CreatedAt: base.Add(time.Hour)},
		{ID: "p3", Name: "Canvas Wrap", Price: decimal.NewFromInt(800), Category: "canvas", Material: "matt", Size: "12x18", Featured: true, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestServiceListSortsAndFilters(t *testing.T) {
	svc := NewService(NewMemoryStore(seedProducts()...), testLogger())
	ctx := context.Background()

	listing, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1"}, productIDs(listing.Products))
	assert.Equal(t, "", listing.Query)

	f, err := ParseFilter(url.Values{"category": {"wood"}, "sortBy": {"price_asc"}})
	require.NoError(t, err)
	listing, err = svc.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, productIDs(listing.Products))
	assert.Equal(t, "category=wood&sortBy=price_asc", listing.Query)

	listing, err = svc.List(ctx, Filter{SortBy: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, productIDs(listing.Products))
}

func TestServiceListUpstreamFailure(t *testing.T) {
	store := NewMemoryStore(seedProducts()...)
	store.SetErr("List", errors.New("dial tcp: connection refused"))
	svc := NewService(store, testLogger())

	_, err := svc.List(context.Background(), Filter{})
	require.Error(t, err)
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeUpstream, se.Code)
	assert.NotContains(t, se.Message, "connection refused")
}

func TestServiceLanding(t *testing.T) {
	svc := NewService(NewMemoryStore(seedProducts()...), testLogger())

	landing, err := svc.Landing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, productIDs(landing.Featured))
	require.Len(t, landing.Categories, 3)
	assert.Equal(t, "/products?category=wood", landing.Categories[0].Href)
	assert.Equal(t, "glass", landing.Categories[2].Category)
}

func TestServiceProductNotFound(t *testing.T) {
	svc := NewService(NewMemoryStore(seedProducts()...), testLogger())

	_, err := svc.Product(context.Background(), "missing")
	assert.True(t, svcerrors.HasCode(err, svcerrors.CodeNotFound))

	p, err := svc.Product(context.Background(), "p3")
	require.NoError(t, err)
	assert.Equal(t, "Canvas Wrap", p.Name)
	assert.Equal(t, "p3", p.Snapshot().ProductID)
}

func TestDeleteRemovesFromListing(t *testing.T) {
	store := NewMemoryStore(seedProducts()...)
	svc := NewService(store, testLogger())
	ctx := context.Background()

	found, err := store.Delete(ctx, "p2")
	require.NoError(t, err)
	require.True(t, found)

	listing, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.NotContains(t, productIDs(listing.Products), "p2")
}

func productIDs(ps []Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
