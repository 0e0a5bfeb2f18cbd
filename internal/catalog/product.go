// Package catalog reads and writes the products table and translates listing
// filters into remote queries.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/snapzone/storefront/internal/cart"
)

// Table is the remote products table.
const Table = "products"

// Finish values accepted for new products.
const (
	FinishMatt   = "matt"
	FinishGlassy = "glassy"
)

// Category tiles shown on the landing page.
var Categories = []string{"wood", "canvas", "glass"}

// Product is one row of the products table.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	Category      string          `json:"category"`
	Material      string          `json:"material"`
	Size          string          `json:"size"`
	Dimensions    string          `json:"dimensions"`
	StockQuantity int             `json:"stock_quantity"`
	Featured      bool            `json:"featured"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Snapshot captures the fields a cart line keeps.
func (p Product) Snapshot() cart.Snapshot {
	return cart.Snapshot{
		ProductID: p.ID,
		Name:      p.Name,
		ImageURL:  p.ImageURL,
		Material:  p.Material,
		Size:      p.Size,
		UnitPrice: p.Price,
	}
}

// NewProduct is the insert payload for a product.
type NewProduct struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	Category      string          `json:"category"`
	Material      string          `json:"material"`
	Size          string          `json:"size"`
	Dimensions    string          `json:"dimensions"`
	StockQuantity int             `json:"stock_quantity"`
	Featured      bool            `json:"featured"`
}
