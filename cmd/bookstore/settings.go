package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"bookstore/internal/app"
	"bookstore/internal/domain"
)

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the public storefront settings",
		Long: `Show or change which categories and payment methods the storefront
offers. Changes are written to the configured storage backend; running
servers pick them up on their next settings refresh.`,
	}
	cmd.AddCommand(newSettingsShowCmd(c), newSettingsSetCmd(c))
	return cmd
}

func newSettingsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSettings(cmd, func(s *app.SettingsService) error {
				return printSettings(cmd.OutOrStdout(), s.Current())
			})
		},
	}
}

func newSettingsSetCmd(c *cli) *cobra.Command {
	var categories, methods string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the stored settings",
		Long: `Change the stored settings. Each flag takes a comma-separated list,
"all" to show everything, or "none" to show nothing. Omitted flags keep
their current value.

Examples:
  bookstore settings set --categories FICCAO,TECNICO
  bookstore settings set --payment-methods card,pix
  bookstore settings set --categories all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("categories") && !cmd.Flags().Changed("payment-methods") {
				return errors.New("nothing to change: pass --categories or --payment-methods")
			}
			return c.withSettings(cmd, func(s *app.SettingsService) error {
				next := s.Current()
				if cmd.Flags().Changed("categories") {
					next.Categories = parseVisibility(categories)
				}
				if cmd.Flags().Changed("payment-methods") {
					next.PaymentMethods = parseVisibility(methods)
				}
				saved, err := s.Save(cmd.Context(), next)
				if err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
				return printSettings(cmd.OutOrStdout(), saved)
			})
		},
	}
	cmd.Flags().StringVar(&categories, "categories", "", "visible categories")
	cmd.Flags().StringVar(&methods, "payment-methods", "", "enabled payment methods")
	return cmd
}

func (c *cli) withSettings(cmd *cobra.Command, fn func(*app.SettingsService) error) error {
	cfg, _, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Backend == "memory" {
		return errors.New("settings need a persistent storage backend, got memory")
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return fn(app.NewSettingsService(cmd.Context(), settingsSlot(st.KV, logger), logger))
}

func parseVisibility(s string) domain.Visibility {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return domain.Unconfigured()
	case "", "none":
		return domain.Configured()
	}
	var values []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return domain.Configured(values...)
}

func printSettings(w io.Writer, s domain.PublicSettings) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
