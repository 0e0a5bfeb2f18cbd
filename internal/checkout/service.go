package checkout

import (
	"context"

	"github.com/snapzone/storefront/internal/cart"
	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/logging"
)

// User facing outcomes.
const (
	SuccessMessage   = "Order placed successfully! We will contact you soon."
	FailureMessage   = "Error placing order. Please try again."
	EmptyCartMessage = "Your cart is empty"

	RedirectHome = "/"
	RedirectCart = "/cart"
)

// Recorder counts checkout outcomes.
type Recorder interface {
	RecordOrder(result string)
}

// Confirmation is returned after a successful checkout.
type Confirmation struct {
	Order    *Order `json:"order"`
	Quote    Quote  `json:"quote"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// Service prices and places orders.
type Service struct {
	policy   Policy
	writer   OrderWriter
	logger   *logging.Logger
	recorder Recorder
}

// NewService creates a checkout service. recorder may be nil.
func NewService(policy Policy, writer OrderWriter, logger *logging.Logger, recorder Recorder) *Service {
	return &Service{policy: policy, writer: writer, logger: logger, recorder: recorder}
}

// Policy returns the fee policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// Quote prices the cart for zone.
func (s *Service) Quote(c *cart.Cart, z Zone) Quote {
	if c == nil {
		return s.policy.Quote(nil, z)
	}
	return s.policy.Quote(c.Lines, z)
}

// Submit validates the form and writes one order with a line per cart line.
// It does not touch c; the caller settles the session cart on success.
func (s *Service) Submit(ctx context.Context, c *cart.Cart, userID string, f Form) (*Confirmation, error) {
	if c == nil || c.IsEmpty() {
		return nil, svcerrors.Validation(EmptyCartMessage).WithDetails("redirect", RedirectCart)
	}

	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	q := s.policy.Quote(c.Lines, f.Zone)
	order, lines := BuildOrder(userID, q, f.ShippingAddress(s.policy), c.Lines)

	created, err := s.writer.WriteOrder(ctx, order, lines)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"lines": len(lines),
			"total": q.Total.String(),
		}).Error("Error placing order")
		s.record("failed")
		return nil, svcerrors.Upstream(FailureMessage, err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id": created.ID,
		"lines":    len(lines),
		"total":    q.Total.String(),
		"zone":     string(q.Zone),
	}).Info("Order placed")
	s.record("placed")

	return &Confirmation{
		Order:    created,
		Quote:    q,
		Message:  SuccessMessage,
		Redirect: RedirectHome,
	}, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordOrder(result)
	}
}
