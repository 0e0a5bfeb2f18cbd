// Package cart implements the session cart: an ordered set of product lines
// with derived totals.
package cart

import (
	"github.com/shopspring/decimal"
)

// Op names a cart mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
	OpSettle Op = "settle"
)

// Snapshot is the product state captured when a line is added.
type Snapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Material  string          `json:"material"`
	Size      string          `json:"size"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Line is one product in the cart. Quantity is always at least 1.
type Line struct {
	Snapshot
	Quantity int `json:"quantity"`
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Observer is notified after every mutation with the operation, the product
// affected (empty for clear) and the cart as it now stands.
type Observer func(op Op, productID string, c *Cart)

// Cart is plain data so it can live in a session store. It is not safe for
// concurrent use; the session store serializes access.
type Cart struct {
	Lines []Line `json:"lines"`

	observers []Observer
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{Lines: []Line{}}
}

// Observe registers an observer. Observers are not serialized with the cart.
func (c *Cart) Observe(o Observer) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

// Add increments the line for s.ProductID, or appends a new line with
// quantity 1.
func (c *Cart) Add(s Snapshot) {
	if i := c.index(s.ProductID); i >= 0 {
		c.Lines[i].Quantity++
	} else {
		c.Lines = append(c.Lines, Line{Snapshot: s, Quantity: 1})
	}
	c.notify(OpAdd, s.ProductID)
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line. Unknown ids are ignored.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.remove(productID)
		c.notify(OpUpdate, productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.Lines[i].Quantity = quantity
	}
	c.notify(OpUpdate, productID)
}

// Remove deletes a line unconditionally.
func (c *Cart) Remove(productID string) {
	c.remove(productID)
	c.notify(OpRemove, productID)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.notify(OpClear, "")
}

// Settle takes ordered lines out of the cart. A line whose quantity grew
// since the order was taken keeps the difference; lines not in ordered are
// kept as they are.
func (c *Cart) Settle(ordered []Line) {
	for _, o := range ordered {
		i := c.index(o.ProductID)
		if i < 0 {
			continue
		}
		if c.Lines[i].Quantity > o.Quantity {
			c.Lines[i].Quantity -= o.Quantity
		} else {
			c.remove(o.ProductID)
		}
	}
	c.notify(OpSettle, "")
}

// Total is the sum of unit price times quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the sum of quantities, the badge value.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Has reports whether the cart holds a line for productID.
func (c *Cart) Has(productID string) bool {
	return c.index(productID) >= 0
}

// Clone returns a copy of the cart data without observers.
func (c *Cart) Clone() *Cart {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return &Cart{Lines: lines}
}

func (c *Cart) index(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

func (c *Cart) notify(op Op, productID string) {
	for _, o := range c.observers {
		o(op, productID, c)
	}
}
