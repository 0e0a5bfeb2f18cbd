package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the seed catalog loaded by cmd/seed-catalog.
type CatalogFile struct {
	Products []CatalogProduct `yaml:"products"`
}

// CatalogProduct is one seed product. Price is kept as a string so the YAML
// never passes through a float.
type CatalogProduct struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Price         string `yaml:"price"`
	ImageURL      string `yaml:"image_url"`
	Category      string `yaml:"category"`
	Material      string `yaml:"material"`
	Size          string `yaml:"size"`
	StockQuantity int    `yaml:"stock_quantity"`
	Featured      bool   `yaml:"featured"`
}

// PriceValue parses the product price.
func (p CatalogProduct) PriceValue() (decimal.Decimal, error) {
	return decimal.NewFromString(p.Price)
}

// LoadCatalog loads and validates a seed catalog file.
func LoadCatalog(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat CatalogFile
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	for i, p := range cat.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("product %d: name is required", i)
		}
		price, err := p.PriceValue()
		if err != nil {
			return nil, fmt.Errorf("product %s: invalid price %q", p.Name, p.Price)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("product %s: price must not be negative", p.Name)
		}
		if p.StockQuantity < 0 {
			return nil, fmt.Errorf("product %s: stock_quantity must not be negative", p.Name)
		}
	}

	return &cat, nil
}
