package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/litesql/internal/config"
	"github.com/satishbabariya/litesql/internal/ui"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.PrintTable([]string{"Setting", "Value"}, configRows(a.cfg))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Save the effective configuration to $HOME/.config/litesql",
		Long:  "Save the effective configuration to $HOME/.config/litesql/.litesql.yaml. Secrets are never written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Save(a.cfg)
			if err != nil {
				return err
			}
			ui.PrintSuccess("Configuration saved to %s", path)
			return nil
		},
	})

	return cmd
}

func configRows(cfg *config.Config) [][]string {
	file := cfg.File
	if file == "" {
		file = "(none)"
	}
	return [][]string{
		{"config file", file},
		{"database", cfg.Database},
		{"pool_size", strconv.Itoa(cfg.PoolSize)},
		{"checkout_timeout", cfg.CheckoutTimeout.String()},
		{"retry_attempts", strconv.Itoa(cfg.RetryAttempts)},
		{"log_level", cfg.LogLevel},
		{"log_json", strconv.FormatBool(cfg.LogJSON)},
		{config.KeyBusyTimeoutMS, strconv.FormatInt(cfg.BusyTimeoutMS, 10)},
		{config.KeySyncURL, cfg.SyncURL},
		{config.KeyEncryptionKey, redact(cfg.EncryptionKey)},
		{config.KeyAuthToken, redact(cfg.AuthToken)},
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
