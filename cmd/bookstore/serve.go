package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	adapthttp "bookstore/internal/adapter/http"
	"bookstore/internal/adapter/durable"
	"bookstore/internal/adapter/rest"
	"bookstore/internal/app"
	"bookstore/internal/config"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, file, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Server)
			if file != "" {
				logger.Info("loaded config", "file", file)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

type gateways struct {
	auth     *rest.AuthClient
	catalog  *rest.CatalogClient
	shipping *rest.ShippingClient
	orders   *rest.OrderClient
	payments *rest.PaymentClient
}

func newGateways(cfg config.ServicesConfig, logger *slog.Logger) (*gateways, error) {
	client := func(service, baseURL string) (*rest.Client, error) {
		return rest.New(service, baseURL,
			rest.WithTimeout(cfg.Timeout),
			rest.WithLogger(logger.With("service", service)))
	}
	auth, err := client("auth", cfg.Auth)
	if err != nil {
		return nil, err
	}
	catalog, err := client("catalog", cfg.Catalog)
	if err != nil {
		return nil, err
	}
	shipping, err := client("shipping", cfg.Shipping)
	if err != nil {
		return nil, err
	}
	orders, err := client("orders", cfg.Orders)
	if err != nil {
		return nil, err
	}
	payments, err := client("payments", cfg.Payments)
	if err != nil {
		return nil, err
	}
	return &gateways{
		auth:     rest.NewAuthClient(auth),
		catalog:  rest.NewCatalogClient(catalog),
		shipping: rest.NewShippingClient(shipping),
		orders:   rest.NewOrderClient(orders),
		payments: rest.NewPaymentClient(payments),
	}, nil
}

func newOIDC(ctx context.Context, cfg config.SSOConfig) (adapthttp.OIDCConfig, error) {
	if !cfg.Enabled {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc discovery for %s: %w", cfg.Issuer, err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.Scopes,
		},
		RolesClaim: cfg.RolesClaim,
		AdminRole:  cfg.AdminRole,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	gw, err := newGateways(cfg.Services, logger)
	if err != nil {
		return err
	}
	sso, err := newOIDC(ctx, cfg.SSO)
	if err != nil {
		return err
	}

	registry := app.NewRegistry(durable.Visitors{KV: st.KV, Sessions: st.Sessions, Logger: logger}, cfg.ShippingFee())
	settings := app.NewSettingsService(ctx, settingsSlot(st.KV, logger), logger)
	validator := app.NewValidator()
	metrics := adapthttp.NewMetrics()
	metrics.TrackVisitors(registry)

	srv := adapthttp.New(adapthttp.Options{
		Visitors: registry,
		Services: adapthttp.Services{
			Auth:     app.NewAuthService(gw.auth, validator, logger),
			Catalog:  app.NewCatalogService(gw.catalog, settings, validator, logger),
			Orders:   app.NewOrderService(gw.orders, gw.payments, logger),
			Shipping: app.NewShippingService(gw.shipping, logger),
			Checkout: app.NewCheckoutService(app.CheckoutDeps{
				Shipping:  gw.shipping,
				Orders:    gw.orders,
				Payments:  gw.payments,
				Gate:      settings,
				Validator: validator,
				Slips:     app.NewSlipRenderer(cfg.Slip),
				Recorder:  metrics,
				Logger:    logger,
			}, cfg.CheckoutSettings()),
			Settings: settings,
		},
		Cookie: adapthttp.CookieConfig{
			Name:   cfg.Visitors.CookieName,
			MaxAge: cfg.Visitors.CookieMaxAge,
			Secure: cfg.Server.SecureCookies,
		},
		SSO:     sso,
		Metrics: metrics,
		WebDir:  cfg.Server.WebDir,
		Logger:  logger,
	})

	go every(ctx, cfg.Visitors.SweepInterval, func() {
		if n := registry.Sweep(cfg.Visitors.IdleTTL); n > 0 {
			logger.Debug("swept idle visitors", "count", n, "remaining", registry.Len())
		}
	})
	go every(ctx, cfg.Settings.RefreshInterval, func() { settings.Refresh(ctx) })

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(srv.CloseStreams)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.HTTPAddr, "config", cfg.String())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("bookstore stopped")
	return nil
}

// every runs fn each interval until ctx is done. A non-positive interval
// never runs fn.
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
