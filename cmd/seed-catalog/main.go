// Command seed-catalog inserts the products listed in a YAML catalog file.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapzone/storefront/internal/catalog"
	"github.com/snapzone/storefront/internal/config"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/supabase"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_SERVICE_KEY")
		path    = flag.String("catalog", "config/catalog.yaml", "Catalog file to seed")
		dryRun  = flag.Bool("dry-run", false, "Validate the catalog without writing")
	)
	flag.Parse()

	logger := logging.NewFromEnv("seed-catalog")

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Fatalf("load env (%s)", *envFile)
	}

	cat, err := config.LoadCatalog(*path)
	if err != nil {
		logger.WithError(err).Fatal("load catalog")
	}

	rows, err := newProducts(cat)
	if err != nil {
		logger.WithError(err).Fatal("convert catalog")
	}
	if *dryRun {
		logger.WithFields(map[string]interface{}{"products": len(rows)}).Info("Catalog is valid")
		return
	}

	client, err := supabase.New(supabase.Config{
		ProjectURL: os.Getenv("SUPABASE_URL"),
		AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	})
	if err != nil {
		logger.WithError(err).Fatal("create Supabase client")
	}
	if !client.HasServiceKey() {
		logger.Fatal("SUPABASE_SERVICE_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := client.From(catalog.Table).Insert(rows).WithServiceKey().Execute(ctx); err != nil {
		logger.WithError(err).Fatal("insert products")
	}
	logger.WithFields(map[string]interface{}{"products": len(rows)}).Info("Catalog seeded")
}

func newProducts(cat *config.CatalogFile) ([]catalog.NewProduct, error) {
	rows := make([]catalog.NewProduct, 0, len(cat.Products))
	for _, p := range cat.Products {
		price, err := p.PriceValue()
		if err != nil {
			return nil, err
		}
		rows = append(rows, catalog.NewProduct{
			Name:          p.Name,
			Description:   p.Description,
			Price:         price,
			ImageURL:      p.ImageURL,
			Category:      p.Category,
			Material:      p.Material,
			Size:          p.Size,
			Dimensions:    p.Size,
			StockQuantity: p.StockQuantity,
			Featured:      p.Featured,
		})
	}
	return rows, nil
}
