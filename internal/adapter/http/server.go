package adapthttp

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"bookstore/internal/app"
)

// Services are the application services the API routes to.
type Services struct {
	Auth     *app.AuthService
	Catalog  *app.CatalogService
	Orders   *app.OrderService
	Shipping *app.ShippingService
	Checkout *app.CheckoutService
	Settings *app.SettingsService
}

// CookieConfig configures the visitor cookie.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// OIDCConfig enables single sign-on through an OpenID Connect provider.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
	// RolesClaim names the ID token claim holding the user's groups.
	RolesClaim string
	AdminRole  string
}

// Options configure a Server.
type Options struct {
	Visitors *app.Registry
	Services Services
	Cookie   CookieConfig
	SSO      OIDCConfig
	Metrics  *Metrics
	WebDir   string
	Logger   *slog.Logger
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	visitors *app.Registry
	auth     *app.AuthService
	catalog  *app.CatalogService
	orders   *app.OrderService
	shipping *app.ShippingService
	checkout *app.CheckoutService
	settings *app.SettingsService

	cookie     CookieConfig
	oidcConfig OIDCConfig
	metrics    *Metrics
	webDir     string
	logger     *slog.Logger

	// streamsDone ends every open event stream once closed.
	streamsDone chan struct{}
	closeOnce   sync.Once
}

// New creates a Server wired to the given application services.
func New(opts Options) *Server {
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = "visitor"
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		visitors:   opts.Visitors,
		auth:       opts.Services.Auth,
		catalog:    opts.Services.Catalog,
		orders:     opts.Services.Orders,
		shipping:   opts.Services.Shipping,
		checkout:   opts.Services.Checkout,
		settings:   opts.Services.Settings,
		cookie:     opts.Cookie,
		oidcConfig: opts.SSO,
		metrics:    opts.Metrics,
		webDir:     opts.WebDir,
		logger:     opts.Logger,

		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends every open event stream so that a graceful shutdown
// does not wait on them. Register it with http.Server.RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		api.Handle(pattern, s.metrics.instrument(pattern, h))
	}

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	handle("/config", s.handleConfig)

	handle("/books", s.handleBooks)
	handle("/books/{id}", s.handleBook)
	handle("/categories", s.handleCategories)

	handle("/settings", s.handleSettings)
	handle("/settings/events", s.handleSettingsEvents)

	handle("/cart", s.handleCart)
	handle("/cart/items", s.handleCartItems)
	handle("/cart/items/{id}", s.handleCartItem)
	handle("/cart/items/{id}/{action}", s.handleCartItemAction)

	handle("/favorites", s.handleFavorites)
	handle("/favorites/{id}", s.handleFavorite)

	handle("/auth/login", s.handleLogin)
	handle("/auth/register", s.handleRegister)
	handle("/auth/logout", s.handleLogout)
	handle("/auth/refresh", s.handleRefresh)
	handle("/auth/sso/login", s.handleSSOLogin)
	handle("/auth/sso/callback", s.handleSSOCallback)

	handle("/me", s.requireSession(s.handleMe))
	handle("/me/password", s.requireSession(s.handlePassword))

	handle("/postal-codes/{cep}", s.handlePostalCode)
	handle("/addresses", s.requireSession(s.handleAddresses))
	handle("/addresses/{id}", s.requireSession(s.handleAddress))

	handle("/checkout", s.handleCheckout)
	handle("/checkout/methods", s.handleCheckoutMethods)
	handle("/checkout/validate", s.handleCheckoutValidate)
	handle("/checkout/last", s.handleCheckoutLast)
	handle("/checkout/last/slip", s.handleCheckoutSlip)

	handle("/orders", s.requireSession(s.handleOrders))
	handle("/orders/{id}", s.requireSession(s.handleOrder))
	handle("/orders/{id}/cancel", s.requireSession(s.handleOrderCancel))
	handle("/payments/{id}", s.requireSession(s.handlePayment))

	handle("/admin/orders", s.requireAdmin(s.handleAdminOrders))
	handle("/admin/orders/{id}", s.requireAdmin(s.handleAdminOrder))
	handle("/admin/books", s.requireAdmin(s.handleAdminBooks))
	handle("/admin/books/{id}", s.requireAdmin(s.handleAdminBook))
	handle("/admin/settings", s.requireAdmin(s.handleAdminSettings))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", s.withVisitor(api)))
	root.Handle("/metrics", s.metrics.Handler())
	root.Handle("/", spaFromDisk(s.webDir))

	return s.withRequestID(s.loggingMiddleware(withNoCache(root)))
}
