package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snapzone/storefront/internal/cart"
)

// Table names.
const (
	OrdersTable     = "orders"
	OrderItemsTable = "order_items"
)

// Fixed order markers.
const (
	GuestUserID   = "guest"
	StatusPending = "pending"
	PaymentCOD    = "cash_on_delivery"
)

// Order is a row of the orders table.
type Order struct {
	ID              string          `json:"id,omitempty" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          string          `json:"status" db:"status"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	PaymentID       string          `json:"payment_id" db:"payment_id"`
	CreatedAt       *time.Time      `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty" db:"updated_at"`
}

// OrderLine is a row of the order_items table.
type OrderLine struct {
	OrderID   string          `json:"order_id" db:"order_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// OrderWriter persists an order together with its lines. Either both are
// stored or neither is.
type OrderWriter interface {
	WriteOrder(ctx context.Context, o Order, lines []OrderLine) (*Order, error)
}

// BuildOrder assembles the order and lines for a checkout. userID empty means
// a guest checkout.
func BuildOrder(userID string, q Quote, shippingAddress string, lines []cart.Line) (Order, []OrderLine) {
	if userID == "" {
		userID = GuestUserID
	}
	o := Order{
		UserID:          userID,
		TotalAmount:     q.Total,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		PaymentID:       PaymentCOD,
	}
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}
	return o, out
}
