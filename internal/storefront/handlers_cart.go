package storefront

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/snapzone/storefront/internal/cart"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/middleware"
	"github.com/snapzone/storefront/internal/money"
	"github.com/snapzone/storefront/internal/session"
)

// =============================================================================
// Cart Views
// =============================================================================

type cartLineView struct {
	cart.Line
	Subtotal        decimal.Decimal `json:"subtotal"`
	SubtotalDisplay string          `json:"subtotal_display"`
}

type cartView struct {
	Lines           []cartLineView  `json:"lines"`
	Count           int             `json:"count"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	SubtotalDisplay string          `json:"subtotal_display"`
}

func viewCart(c *cart.Cart) cartView {
	if c == nil {
		c = cart.New()
	}
	lines := make([]cartLineView, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineView{
			Line:            l,
			Subtotal:        l.Subtotal(),
			SubtotalDisplay: money.Format(l.Subtotal()),
		})
	}
	total := c.Total()
	return cartView{
		Lines:           lines,
		Count:           c.Count(),
		Subtotal:        total,
		SubtotalDisplay: money.Format(total),
	}
}

// =============================================================================
// Cart Handlers
// =============================================================================

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, viewCart(middleware.GetSession(r.Context()).Cart))
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		httputil.WriteError(w, r, svcerrors.FieldErrors("Invalid cart item", map[string]string{"product_id": "required"}))
		return
	}

	// The snapshot is taken from the catalog, never from the client.
	p, err := s.catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	snap := p.Snapshot()
	s.mutateCart(w, r, func(c *cart.Cart) { c.Add(snap) })
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httputil.WriteError(w, r, svcerrors.FieldErrors("Invalid cart item", map[string]string{"quantity": "required"}))
		return
	}
	id := mux.Vars(r)["id"]
	quantity := *req.Quantity
	s.mutateCart(w, r, func(c *cart.Cart) { c.UpdateQuantity(id, quantity) })
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mutateCart(w, r, func(c *cart.Cart) { c.Remove(id) })
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.mutateCart(w, r, func(c *cart.Cart) { c.Clear() })
}

// mutateCart applies fn to the stored session cart atomically and writes the
// resulting cart.
func (s *Server) mutateCart(w http.ResponseWriter, r *http.Request, fn func(*cart.Cart)) {
	updated, err := s.updateCart(r.Context(), fn)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewCart(updated.Cart))
}

func (s *Server) updateCart(ctx context.Context, fn func(*cart.Cart)) (*session.Session, error) {
	sess := middleware.GetSession(ctx)
	observer := s.cartObserver(ctx)
	updated, err := s.sessions.Update(ctx, sess.ID, func(stored *session.Session) error {
		if stored.Cart == nil {
			stored.Cart = cart.New()
		}
		stored.Cart.Observe(observer)
		fn(stored.Cart)
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Cart update failed")
		return nil, svcerrors.Upstream("Could not update your cart. Please try again.", err)
	}
	return updated, nil
}
