package storefront

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/snapzone/storefront/internal/catalog"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/money"
)

// =============================================================================
// Health & Pages
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.NotFound(w, "No such page")
}

// pageBodies are the placeholder information pages.
var pageBodies = map[string]struct{ title, body string }{
	"privacy":  {"Privacy Policy", "Our privacy policy is being written and will be published here."},
	"terms":    {"Terms of Service", "Our terms of service are being written and will be published here."},
	"shipping": {"Shipping Information", "Orders are paid cash on delivery. Delivery within Coimbatore is free; other locations pay a flat fee."},
}

func (s *Server) handlePage(name string) http.HandlerFunc {
	page := pageBodies[name]
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"page":  name,
			"title": page.title,
			"body":  page.body,
		})
	}
}

// =============================================================================
// Catalog Handlers
// =============================================================================

// productView adds the display price to a product.
type productView struct {
	catalog.Product
	PriceDisplay string `json:"price_display"`
	Href         string `json:"href"`
}

func viewProducts(products []catalog.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, viewProduct(p))
	}
	return out
}

func viewProduct(p catalog.Product) productView {
	return productView{Product: p, PriceDisplay: money.Format(p.Price), Href: "/products/" + p.ID}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	landing, err := s.catalog.Landing(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"featured":   viewProducts(landing.Featured),
		"categories": landing.Categories,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	listing, err := s.catalog.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"products": viewProducts(listing.Products),
		"query":    listing.Query,
		"filter":   listing.Filter,
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewProduct(*p))
}
