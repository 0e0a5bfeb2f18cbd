// Command migrate applies the embedded schema to DATABASE_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/platform/database"
	"github.com/snapzone/storefront/internal/platform/migrations"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "Path to .env with DATABASE_URL")
		list    = flag.Bool("list", false, "List migrations without applying them")
	)
	flag.Parse()

	logger := logging.NewFromEnv("migrate")

	if *list {
		names, err := migrations.Names()
		if err != nil {
			logger.WithError(err).Fatal("list migrations")
		}
		for _, name := range names {
			logger.Info(name)
		}
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Fatalf("load env (%s)", *envFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Open(ctx, os.Getenv("DATABASE_URL"), database.Options{MaxOpenConns: 1})
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db.DB); err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}
	logger.Info("Migrations applied")
}
