package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bookstore/internal/config"
)

type cli struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "bookstore",
		Short: "Bookstore storefront backend",
		Long: `Bookstore serves the storefront SPA and its JSON API, keeping each
visitor's cart, favorites and session, and orchestrating checkout against
the auth, catalog, shipping, orders and payments services.

Configuration:
  Config is loaded from bookstore.yaml in the current directory,
  $HOME/.bookstore/, or /etc/bookstore/.

  Environment variables override config values with the BOOKSTORE_ prefix.
  Example: BOOKSTORE_SERVER_HTTP_ADDR=:9090`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./bookstore.yaml)")

	root.AddCommand(newServeCmd(c), newSettingsCmd(c), newVersionCmd())
	return root
}

func (c *cli) loadConfig() (*config.Config, string, error) {
	loader := config.NewLoader(c.configFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, "", err
	}
	return cfg, loader.FileUsed(), nil
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
