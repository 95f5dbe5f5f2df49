package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// FileName is the config file base name searched for in the standard
// locations.
const FileName = "bookstore"

// EnvPrefix prefixes every environment override, e.g.
// BOOKSTORE_SERVER_HTTP_ADDR for server.http_addr.
const EnvPrefix = "BOOKSTORE"

// envKeys are the nested keys that can be overridden from the environment.
var envKeys = []string{
	"server.http_addr",
	"server.web_dir",
	"server.log_level",
	"server.log_format",
	"server.secure_cookies",
	"server.shutdown_timeout",

	"services.auth",
	"services.catalog",
	"services.shipping",
	"services.orders",
	"services.payments",
	"services.timeout",

	"storage.backend",
	"storage.path",
	"storage.database_url",
	"storage.session_secret",

	"cart.shipping_fee",

	"checkout.step_timeout",
	"checkout.compensate",
	"checkout.success_redirect",
	"checkout.boleto_due_days",

	"visitors.cookie_name",
	"visitors.cookie_max_age",
	"visitors.idle_ttl",
	"visitors.sweep_interval",

	"settings.refresh_interval",

	"slip.name",
	"slip.cnpj",
	"slip.agency",
	"slip.account",

	"sso.enabled",
	"sso.issuer",
	"sso.client_id",
	"sso.client_secret",
	"sso.redirect_url",
	"sso.roles_claim",
	"sso.admin_role",
	// sso.scopes is a list; set it in the config file.
}

// Loader reads configuration through its own viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader for configFile. When configFile is empty the
// standard locations are searched for bookstore.yaml or bookstore.yml.
func NewLoader(configFile string) *Loader {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		v.SetConfigFile(found)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return &Loader{v: v}
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{"."}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".bookstore"))
	}
	paths = append(paths, "/etc/bookstore")
	return findConfigFileInPaths(paths)
}

func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Load reads the file (if any), applies environment overrides and
// defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// FileUsed returns the config file that was read, or "" when running on
// environment variables only.
func (l *Loader) FileUsed() string {
	return l.v.ConfigFileUsed()
}
