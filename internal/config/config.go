// Package config loads the bookstore configuration from a YAML file and
// BOOKSTORE_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bookstore/internal/app"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Services ServicesConfig  `mapstructure:"services"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Cart     CartConfig      `mapstructure:"cart"`
	Checkout CheckoutConfig  `mapstructure:"checkout"`
	Visitors VisitorsConfig  `mapstructure:"visitors"`
	Settings SettingsConfig  `mapstructure:"settings"`
	Slip     app.Beneficiary `mapstructure:"slip"`
	SSO      SSOConfig       `mapstructure:"sso"`
}

// ServerConfig configures the HTTP listener and logging.
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr" validate:"required,hostname_port"`
	WebDir          string        `mapstructure:"web_dir"`
	LogLevel        string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ServicesConfig holds the base URLs of the collaborator services.
type ServicesConfig struct {
	Auth     string        `mapstructure:"auth" validate:"required,url"`
	Catalog  string        `mapstructure:"catalog" validate:"required,url"`
	Shipping string        `mapstructure:"shipping" validate:"required,url"`
	Orders   string        `mapstructure:"orders" validate:"required,url"`
	Payments string        `mapstructure:"payments" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the durable slot backend. SessionSecret seals the
// session slot and is required for every backend that outlives the process.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=memory file postgres sqlite"`
	Path          string `mapstructure:"path" validate:"required_if=Backend file,required_if=Backend sqlite"`
	DatabaseURL   string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	SessionSecret string `mapstructure:"session_secret" validate:"required_unless=Backend memory"`
}

// CartConfig configures cart pricing.
type CartConfig struct {
	ShippingFee string `mapstructure:"shipping_fee" validate:"required,money"`
}

// CheckoutConfig tunes the checkout orchestrator.
type CheckoutConfig struct {
	StepTimeout     time.Duration `mapstructure:"step_timeout"`
	Compensate      bool          `mapstructure:"compensate"`
	SuccessRedirect string        `mapstructure:"success_redirect" validate:"omitempty,startswith=/"`
	BoletoDueDays   int           `mapstructure:"boleto_due_days" validate:"gte=0"`
}

// VisitorsConfig configures visitor identification and idle eviction.
type VisitorsConfig struct {
	CookieName    string        `mapstructure:"cookie_name" validate:"required"`
	CookieMaxAge  time.Duration `mapstructure:"cookie_max_age"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SettingsConfig configures the public settings gate.
type SettingsConfig struct {
	// RefreshInterval re-reads the stored settings so that saves made by
	// another process reach this one. Zero disables polling.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// SSOConfig configures optional OpenID Connect login.
type SSOConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Issuer       string   `mapstructure:"issuer" validate:"required_if=Enabled true,omitempty,url"`
	ClientID     string   `mapstructure:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url" validate:"required_if=Enabled true,omitempty,url"`
	Scopes       []string `mapstructure:"scopes"`
	RolesClaim   string   `mapstructure:"roles_claim"`
	AdminRole    string   `mapstructure:"admin_role"`
}

// SetDefaults fills in every optional field left empty.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.WebDir == "" {
		c.Server.WebDir = "web"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Services.Timeout == 0 {
		c.Services.Timeout = 10 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}

	if c.Cart.ShippingFee == "" {
		c.Cart.ShippingFee = "19.90"
	}

	if c.Checkout.StepTimeout == 0 {
		c.Checkout.StepTimeout = 15 * time.Second
	}
	if c.Checkout.SuccessRedirect == "" {
		c.Checkout.SuccessRedirect = "/account/orders"
	}
	if c.Checkout.BoletoDueDays == 0 {
		c.Checkout.BoletoDueDays = 3
	}

	if c.Visitors.CookieName == "" {
		c.Visitors.CookieName = "visitor"
	}
	if c.Visitors.CookieMaxAge == 0 {
		c.Visitors.CookieMaxAge = 365 * 24 * time.Hour
	}
	if c.Visitors.IdleTTL == 0 {
		c.Visitors.IdleTTL = 30 * time.Minute
	}
	if c.Visitors.SweepInterval == 0 {
		c.Visitors.SweepInterval = time.Minute
	}

	if c.Slip.Name == "" {
		c.Slip.Name = "Livraria"
	}

	if len(c.SSO.Scopes) == 0 {
		c.SSO.Scopes = []string{"openid", "profile", "email"}
	}
	if c.SSO.RolesClaim == "" {
		c.SSO.RolesClaim = "groups"
	}
	if c.SSO.AdminRole == "" {
		c.SSO.AdminRole = "admin"
	}
}

// ShippingFee returns the parsed flat shipping fee. Validate guarantees it
// parses.
func (c *Config) ShippingFee() decimal.Decimal {
	d, err := decimal.NewFromString(c.Cart.ShippingFee)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CheckoutSettings converts the checkout section for the orchestrator.
func (c *Config) CheckoutSettings() app.CheckoutConfig {
	return app.CheckoutConfig{
		StepTimeout:     c.Checkout.StepTimeout,
		Compensate:      c.Checkout.Compensate,
		SuccessRedirect: c.Checkout.SuccessRedirect,
		BoletoDueDays:   c.Checkout.BoletoDueDays,
	}
}

// String summarizes the config without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s storage=%s sso=%t", c.Server.HTTPAddr, c.Storage.Backend, c.SSO.Enabled)
}
