package storefront

import (
	"net/http"

	"github.com/snapzone/storefront/internal/middleware"
)

// =============================================================================
// API Routes
// =============================================================================

func (s *Server) registerRoutes(opts Options) {
	router := s.router
	router.Use(middleware.MetricsMiddleware(ServiceName, s.metrics))
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	ids := middleware.NewIdentityMiddleware(opts.Identity, opts.Sessions, s.logger)

	app := router.PathPrefix("/").Subrouter()
	app.Use(s.cookies.Handler, ids.Handler)

	// Catalog
	app.HandleFunc("/", s.handleLanding).Methods("GET")
	app.HandleFunc("/frames", s.handleLanding).Methods("GET")
	app.HandleFunc("/products", s.handleListProducts).Methods("GET")
	app.HandleFunc("/products/{id}", s.handleGetProduct).Methods("GET")

	// Cart
	app.HandleFunc("/cart", s.handleGetCart).Methods("GET")
	app.HandleFunc("/cart", s.handleClearCart).Methods("DELETE")
	app.HandleFunc("/cart/items", s.handleAddToCart).Methods("POST")
	app.HandleFunc("/cart/items/{id}", s.handleUpdateCartItem).Methods("PATCH")
	app.HandleFunc("/cart/items/{id}", s.handleRemoveCartItem).Methods("DELETE")

	// Checkout
	app.HandleFunc("/checkout/quote", s.handleQuote).Methods("GET")
	app.HandleFunc("/checkout", s.handleCheckout).Methods("POST")

	// Account
	app.HandleFunc("/login", s.handleLoginPage).Methods("GET")
	app.Handle("/auth/register", s.limiter.Handler(http.HandlerFunc(s.handleRegister))).Methods("POST")
	app.Handle("/auth/login", s.limiter.Handler(http.HandlerFunc(s.handleLogin))).Methods("POST")
	app.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	app.HandleFunc("/auth/session", s.handleSession).Methods("GET")

	// Information pages
	app.HandleFunc("/privacy", s.handlePage("privacy")).Methods("GET")
	app.HandleFunc("/terms", s.handlePage("terms")).Methods("GET")
	app.HandleFunc("/shipping", s.handlePage("shipping")).Methods("GET")

	// Admin console
	adm := app.PathPrefix("/admin").Subrouter()
	adm.Use(middleware.RequireAdmin(s.logger))
	adm.HandleFunc("/products", s.handleAdminListProducts).Methods("GET")
	adm.HandleFunc("/products", s.handleAdminCreateProduct).Methods("POST")
	adm.HandleFunc("/products/{id}", s.handleAdminDeleteProduct).Methods("DELETE")
	adm.HandleFunc("/orders", s.handleAdminListOrders).Methods("GET")
	if s.feed != nil {
		adm.Handle("/orders/live", s.feed).Methods("GET")
	}
}
