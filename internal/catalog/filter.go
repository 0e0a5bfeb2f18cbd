package catalog

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/supabase"
)

// SortKey selects the single order clause of a listing query.
type SortKey string

const (
	SortName      SortKey = "name"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortNewest    SortKey = "newest"
)

// Query parameter names, shared with the listing URL.
const (
	ParamCategory = "category"
	ParamMaterial = "material"
	ParamSize     = "size"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
	ParamSortBy   = "sortBy"
)

// Filter is the listing filter set. Empty strings and nil bounds mean "no
// constraint".
type Filter struct {
	Category string
	Material string
	Size     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	SortBy   SortKey
}

// ParseSortKey maps a raw key to a known one; unknown keys fall back to name.
func ParseSortKey(raw string) SortKey {
	switch SortKey(strings.TrimSpace(raw)) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	case SortNewest:
		return SortNewest
	default:
		return SortName
	}
}

// ParseFilter reads a filter from URL query values. A price bound that is
// not a non-negative number is a validation error.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Category: strings.TrimSpace(q.Get(ParamCategory)),
		Material: strings.TrimSpace(q.Get(ParamMaterial)),
		Size:     strings.TrimSpace(q.Get(ParamSize)),
		SortBy:   ParseSortKey(q.Get(ParamSortBy)),
	}

	invalid := map[string]string{}
	var err error
	if f.MinPrice, err = parseBound(q.Get(ParamMinPrice)); err != nil {
		invalid[ParamMinPrice] = "must be a non-negative number"
	}
	if f.MaxPrice, err = parseBound(q.Get(ParamMaxPrice)); err != nil {
		invalid[ParamMaxPrice] = "must be a non-negative number"
	}
	if len(invalid) > 0 {
		return Filter{}, svcerrors.FieldErrors("Invalid price filter", invalid)
	}
	return f, nil
}

func parseBound(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, svcerrors.Validation("negative bound")
	}
	return &d, nil
}

// Values encodes the filter back into query values, omitting empty values
// and the default sort.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Category != "" {
		v.Set(ParamCategory, f.Category)
	}
	if f.Material != "" {
		v.Set(ParamMaterial, f.Material)
	}
	if f.Size != "" {
		v.Set(ParamSize, f.Size)
	}
	if f.MinPrice != nil {
		v.Set(ParamMinPrice, f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		v.Set(ParamMaxPrice, f.MaxPrice.String())
	}
	if sort := ParseSortKey(string(f.SortBy)); sort != SortName {
		v.Set(ParamSortBy, string(sort))
	}
	return v
}

// Encode is the shareable query string for the filter.
func (f Filter) Encode() string {
	return f.Values().Encode()
}

// Apply adds the filter's predicates and its one order clause to q.
func (f Filter) Apply(q *supabase.QueryBuilder) *supabase.QueryBuilder {
	if f.Category != "" {
		q = q.Eq("category", f.Category)
	}
	if f.Material != "" {
		q = q.Eq("material", f.Material)
	}
	if f.Size != "" {
		q = q.Eq("size", f.Size)
	}
	if f.MinPrice != nil {
		q = q.Gte("price", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q = q.Lte("price", f.MaxPrice.String())
	}

	switch ParseSortKey(string(f.SortBy)) {
	case SortPriceAsc:
		q = q.Order("price", supabase.OrderAsc)
	case SortPriceDesc:
		q = q.Order("price", supabase.OrderDesc)
	case SortNewest:
		q = q.Order("created_at", supabase.OrderDesc)
	default:
		q = q.Order("name", supabase.OrderAsc)
	}
	return q
}
