// Package main runs the storefront HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snapzone/storefront/internal/admin"
	"github.com/snapzone/storefront/internal/catalog"
	"github.com/snapzone/storefront/internal/checkout"
	"github.com/snapzone/storefront/internal/config"
	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/metrics"
	"github.com/snapzone/storefront/internal/orderfeed"
	"github.com/snapzone/storefront/internal/platform/database"
	"github.com/snapzone/storefront/internal/session"
	"github.com/snapzone/storefront/internal/storefront"
	"github.com/snapzone/storefront/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewFromEnv(storefront.ServiceName).WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(storefront.ServiceName, cfg.LogLevel, cfg.LogFormat)
	m := metrics.New("snapzone")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := supabase.New(supabase.Config{
		ProjectURL: cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		ServiceKey: cfg.SupabaseServiceKey,
		Timeout:    cfg.SupabaseTimeout,
		Retry:      supabase.DefaultRetryPolicy(),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Supabase client")
	}

	// Sessions
	var sessions session.Store
	if cfg.RedisURL != "" {
		sessions, err = session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect session store")
		}
		logger.Info("Sessions stored in Redis")
	} else {
		sessions, err = session.NewMemoryStore(cfg.SessionTTL, "@every 5m", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create session store")
		}
		logger.Warn("REDIS_URL not set; sessions are kept in memory")
	}
	defer sessions.Close()

	// Orders
	var writer checkout.OrderWriter = checkout.NewRESTWriter(client, logger)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL, database.DefaultOptions)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		writer = checkout.NewPostgresWriter(db)
		logger.Info("Orders written through a direct database transaction")
	}

	products := catalog.NewSupabaseStore(client)
	policy := checkout.Policy{
		RemoteFee:   cfg.RemoteZoneFee,
		LocalLabel:  cfg.LocalZoneLabel,
		RemoteLabel: cfg.RemoteZoneLabel,
	}

	ids := identity.NewService(client, identity.NewSupabaseProfiles(client), identity.Options{
		AdminEmails: cfg.AdminEmails,
		JWTSecret:   cfg.SupabaseJWTSecret,
	}, logger)
	unsubscribe := ids.Subscribe(func(e identity.Event) {
		m.RecordAuthEvent(string(e.Type))
	})
	defer unsubscribe()

	opts := storefront.Options{
		Logger:             logger,
		Metrics:            m,
		Sessions:           sessions,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SessionCookieSecure,
		Catalog:            catalog.NewService(products, logger),
		Checkout:           checkout.NewService(policy, writer, logger, m),
		Identity:           ids,
		Admin:              admin.NewService(products, admin.NewSupabaseOrders(client), client.Storage(), cfg.StorageBucket, logger),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:      cfg.AuthRateLimit,
		AuthRateBurst:      cfg.AuthRateBurst,
	}

	// Live order feed
	var hub *orderfeed.Hub
	if cfg.RealtimeEnabled {
		hub = orderfeed.NewHub(logger, m)
		opts.OrderFeed = hub
		feed := orderfeed.NewFeed(client, hub, logger)
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.WithError(err).Error("Order feed stopped")
			}
		}()
	}

	srv := storefront.New(opts)
	srv.StartBackground(ctx)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": server.Addr}).Info("Storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	cancel()
	if hub != nil {
		hub.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}

	logger.Info("Storefront stopped")
}
