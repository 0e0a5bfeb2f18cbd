// Package storefront is the HTTP surface of the shop: catalog pages, the
// session cart, checkout, account routes and the admin console.
package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/snapzone/storefront/internal/admin"
	"github.com/snapzone/storefront/internal/cart"
	"github.com/snapzone/storefront/internal/catalog"
	"github.com/snapzone/storefront/internal/checkout"
	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/internal/metrics"
	"github.com/snapzone/storefront/internal/middleware"
	"github.com/snapzone/storefront/internal/session"
)

// ServiceName labels logs and metrics.
const ServiceName = "storefront"

// Options wires the server to its services.
type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics

	Sessions      session.Store
	SessionTTL    time.Duration
	SecureCookies bool

	Catalog  *catalog.Service
	Checkout *checkout.Service
	Identity *identity.Service
	Admin    *admin.Service

	// OrderFeed serves /admin/orders/live. Nil disables the route.
	OrderFeed http.Handler

	CORSAllowedOrigins []string
	AuthRateLimit      int
	AuthRateBurst      int
}

// Server routes storefront requests.
type Server struct {
	logger   *logging.Logger
	metrics  *metrics.Metrics
	sessions session.Store
	catalog  *catalog.Service
	checkout *checkout.Service
	ids      *identity.Service
	admin    *admin.Service
	feed     http.Handler

	router  *mux.Router
	handler http.Handler
	limiter *middleware.RateLimiter
	cookies *middleware.SessionMiddleware
	now     func() time.Time
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(ServiceName)
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 5
	}
	if opts.AuthRateBurst < opts.AuthRateLimit {
		opts.AuthRateBurst = opts.AuthRateLimit
	}

	s := &Server{
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		checkout: opts.Checkout,
		ids:      opts.Identity,
		admin:    opts.Admin,
		feed:     opts.OrderFeed,
		router:   mux.NewRouter(),
		limiter:  middleware.NewRateLimiter(opts.AuthRateLimit, opts.AuthRateBurst, opts.Logger),
		cookies:  middleware.NewSessionMiddleware(opts.Sessions, opts.SessionTTL, opts.SecureCookies, opts.Logger),
		now:      time.Now,
	}
	s.registerRoutes(opts)

	cors := middleware.NewCORSMiddleware(opts.CORSAllowedOrigins)
	s.handler = middleware.LoggingMiddleware(s.logger)(cors.Handler(s.router))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table.
func (s *Server) Router() *mux.Router {
	return s.router
}

// StartBackground runs housekeeping until ctx is done.
func (s *Server) StartBackground(ctx context.Context) {
	s.limiter.StartCleanup(ctx, 5*time.Minute)
}

// cartObserver feeds cart mutations into metrics and the debug log.
func (s *Server) cartObserver(ctx context.Context) cart.Observer {
	return func(op cart.Op, productID string, c *cart.Cart) {
		s.metrics.RecordCartMutation(string(op))
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"op":         string(op),
			"product_id": productID,
			"count":      c.Count(),
		}).Debug("Cart updated")
	}
}
