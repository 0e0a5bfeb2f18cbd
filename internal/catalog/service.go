package catalog

import (
	"context"
	"errors"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
)

// FeaturedLimit is the number of products shown on the landing page.
const FeaturedLimit = 6

// Service is the read side of the catalog used by storefront pages.
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates a catalog service.
func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Listing is one page of filtered products plus the filter that produced it.
type Listing struct {
	Products []Product  `json:"products"`
	Query    string     `json:"query"`
	Filter   FilterView `json:"filter"`
}

// FilterView is the JSON form of a Filter.
type FilterView struct {
	Category string `json:"category,omitempty"`
	Material string `json:"material,omitempty"`
	Size     string `json:"size,omitempty"`
	MinPrice string `json:"minPrice,omitempty"`
	MaxPrice string `json:"maxPrice,omitempty"`
	SortBy   string `json:"sortBy"`
}

// View renders f for clients.
func (f Filter) View() FilterView {
	v := FilterView{
		Category: f.Category,
		Material: f.Material,
		Size:     f.Size,
		SortBy:   string(ParseSortKey(string(f.SortBy))),
	}
	if f.MinPrice != nil {
		v.MinPrice = f.MinPrice.String()
	}
	if f.MaxPrice != nil {
		v.MaxPrice = f.MaxPrice.String()
	}
	return v
}

// Landing is the landing page content.
type Landing struct {
	Featured   []Product      `json:"featured"`
	Categories []CategoryTile `json:"categories"`
}

// CategoryTile links to the listing filtered by one category.
type CategoryTile struct {
	Category string `json:"category"`
	Href     string `json:"href"`
}

// List issues a fresh remote query for f.
func (s *Service) List(ctx context.Context, f Filter) (*Listing, error) {
	products, err := s.store.List(ctx, f)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Product listing failed")
		return nil, svcerrors.Upstream("Could not load products. Please try again.", err)
	}
	if products == nil {
		products = []Product{}
	}
	return &Listing{Products: products, Query: f.Encode(), Filter: f.View()}, nil
}

// Landing loads the featured products and the category tiles.
func (s *Service) Landing(ctx context.Context) (*Landing, error) {
	featured, err := s.store.Featured(ctx, FeaturedLimit)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Featured products failed")
		return nil, svcerrors.Upstream("Could not load products. Please try again.", err)
	}
	if featured == nil {
		featured = []Product{}
	}

	tiles := make([]CategoryTile, 0, len(Categories))
	for _, c := range Categories {
		tiles = append(tiles, CategoryTile{
			Category: c,
			Href:     "/products?" + Filter{Category: c}.Encode(),
		})
	}
	return &Landing{Featured: featured, Categories: tiles}, nil
}

// Product loads one product by id.
func (s *Service) Product(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, svcerrors.NotFound("product", id)
		}
		s.logger.WithContext(ctx).WithError(err).WithField("product_id", id).Error("Product lookup failed")
		return nil, svcerrors.Upstream("Could not load product. Please try again.", err)
	}
	return p, nil
}
