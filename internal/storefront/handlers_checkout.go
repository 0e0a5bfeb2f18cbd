package storefront

import (
	"net/http"

	"github.com/snapzone/storefront/internal/cart"
	"github.com/snapzone/storefront/internal/checkout"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/middleware"
	"github.com/snapzone/storefront/internal/money"
)

// =============================================================================
// Checkout Handlers
// =============================================================================

type quoteView struct {
	checkout.Quote
	SubtotalDisplay  string `json:"subtotal_display"`
	SurchargeDisplay string `json:"surcharge_display"`
	TotalDisplay     string `json:"total_display"`
}

func viewQuote(q checkout.Quote) quoteView {
	return quoteView{
		Quote:            q,
		SubtotalDisplay:  money.Format(q.Subtotal),
		SurchargeDisplay: money.Format(q.Surcharge),
		TotalDisplay:     money.Format(q.Total),
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("zone")
	if raw == "" {
		raw = string(checkout.ZoneWithin)
	}
	zone, err := checkout.ParseZone(raw)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.FieldErrors("Invalid delivery zone", map[string]string{
			"zone": "must be one of: within outside",
		}))
		return
	}

	q := s.checkout.Quote(middleware.GetSession(r.Context()).Cart, zone)
	httputil.WriteJSON(w, http.StatusOK, viewQuote(q))
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if !httputil.DecodeJSON(w, r, &form) {
		return
	}

	ctx := r.Context()
	userID := ""
	if id := middleware.GetIdentity(ctx); id != nil {
		userID = id.UserID
	}

	ordered := middleware.GetSession(ctx).Cart
	if ordered != nil {
		ordered = ordered.Clone()
	}
	conf, err := s.checkout.Submit(ctx, ordered, userID, form)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	// The order is placed; a failure to settle the cart must not be reported
	// as a failed checkout.
	if _, err := s.updateCart(ctx, func(c *cart.Cart) { c.Settle(ordered.Lines) }); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"order_id": conf.Order.ID,
		}).Warn("Order placed but cart was not cleared")
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"order":    conf.Order,
		"quote":    viewQuote(conf.Quote),
		"message":  conf.Message,
		"redirect": conf.Redirect,
	})
}
