package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/supabase"
)

// =============================================================================
// REST writer
// =============================================================================

// RESTWriter writes through PostgREST: one insert for the order, one bulk
// insert for every line. The order id is assigned here and neither insert
// reads rows back, so guests can write orders they are not allowed to see.
// A failed line insert is compensated by deleting the order, with the service
// key when one is configured.
type RESTWriter struct {
	client *supabase.Client
	logger *logging.Logger
	newID  func() string
}

// NewRESTWriter creates a REST order writer.
func NewRESTWriter(client *supabase.Client, logger *logging.Logger) *RESTWriter {
	return &RESTWriter{client: client, logger: logger, newID: uuid.NewString}
}

// WriteOrder implements OrderWriter.
func (w *RESTWriter) WriteOrder(ctx context.Context, o Order, lines []OrderLine) (*Order, error) {
	if o.ID == "" {
		o.ID = w.newID()
	}
	if _, err := w.client.From(OrdersTable).Insert(o).ReturnMinimal().Execute(ctx); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if len(lines) == 0 {
		return &o, nil
	}

	rows := withOrderID(lines, o.ID)
	if _, err := w.client.From(OrderItemsTable).Insert(rows).ReturnMinimal().Execute(ctx); err != nil {
		lineErr := fmt.Errorf("insert order lines: %w", err)
		if derr := w.discard(ctx, o.ID); derr != nil {
			w.logger.WithContext(ctx).WithError(derr).WithFields(map[string]interface{}{
				"order_id": o.ID,
			}).Error("Compensating order delete failed; order has no lines")
			return nil, fmt.Errorf("%w (compensating delete of order %s failed: %v)", lineErr, o.ID, derr)
		}
		return nil, lineErr
	}
	return &o, nil
}

func (w *RESTWriter) discard(ctx context.Context, orderID string) error {
	q := w.client.From(OrdersTable).Delete().Eq("id", orderID)
	if w.client.HasServiceKey() {
		q = q.WithServiceKey()
	}
	var deleted []Order
	if err := q.ExecuteInto(ctx, &deleted); err != nil {
		return err
	}
	if len(deleted) == 0 {
		return fmt.Errorf("no row deleted")
	}
	return nil
}

// =============================================================================
// Postgres writer
// =============================================================================

// PostgresWriter writes the order and its lines in one SQL transaction.
type PostgresWriter struct {
	db *sqlx.DB
}

// NewPostgresWriter creates a transactional writer over db.
func NewPostgresWriter(db *sqlx.DB) *PostgresWriter {
	return &PostgresWriter{db: db}
}

const insertOrderSQL = `
	INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at`

const insertOrderLineSQL = `
	INSERT INTO order_items (order_id, product_id, quantity, price)
	VALUES (:order_id, :product_id, :quantity, :price)`

// WriteOrder implements OrderWriter.
func (w *PostgresWriter) WriteOrder(ctx context.Context, o Order, lines []OrderLine) (out *Order, err error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var createdAt, updatedAt time.Time
	row := tx.QueryRowxContext(ctx, insertOrderSQL, o.UserID, o.TotalAmount, o.Status, o.ShippingAddress, o.PaymentID)
	if err = row.Scan(&o.ID, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	o.CreatedAt = &createdAt
	o.UpdatedAt = &updatedAt

	if len(lines) > 0 {
		if _, err = tx.NamedExecContext(ctx, insertOrderLineSQL, withOrderID(lines, o.ID)); err != nil {
			return nil, fmt.Errorf("insert order lines: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return &o, nil
}

func withOrderID(lines []OrderLine, orderID string) []OrderLine {
	out := make([]OrderLine, len(lines))
	for i, l := range lines {
		l.OrderID = orderID
		out[i] = l
	}
	return out
}
