// Package commands implements CLI commands.
package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/litesql/internal/config"
	"github.com/satishbabariya/litesql/internal/core/retry"
	"github.com/satishbabariya/litesql/internal/debug"
	"github.com/satishbabariya/litesql/internal/version"
	"github.com/satishbabariya/litesql/pkg/client"
)

// app is the state shared by all commands: flags, then the loaded configuration.
type app struct {
	configFile string
	database   string
	logLevel   string

	cfg *config.Config
}

// NewRootCommand creates the litesql command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "litesql",
		Short:         "Run SQL against SQLite databases",
		Long:          "litesql runs scripts and queries against SQLite databases with nested transactions and busy retries",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default: .litesql.yaml in ., $HOME or $HOME/.config/litesql)")
	root.PersistentFlags().StringVarP(&a.database, "database", "d", "", "Database file (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(newExecCommand(a))
	root.AddCommand(newQueryCommand(a))
	root.AddCommand(newExplainCommand(a))
	root.AddCommand(newConfigCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.database != "" {
		cfg.Database = a.database
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	level, err := debug.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	debug.Configure(os.Stderr, level, cfg.LogJSON)

	a.cfg = cfg
	return nil
}

func (a *app) open(ctx context.Context) (*client.Client, error) {
	cfg := a.cfg
	return client.Open(ctx, cfg.Database,
		client.WithPoolSize(cfg.PoolSize),
		client.WithCheckoutTimeout(cfg.CheckoutTimeout),
		client.WithRetry(retry.WithMaxAttempts(cfg.RetryAttempts)),
		client.WithEngineOptions(cfg.EngineOptions()),
		client.WithLogger(debug.Logger()),
		client.WithLogQueries(debug.Enabled()),
	)
}

// parseArgs turns command line arguments into statement parameters: integers, then
// floats, then true/false and NULL, otherwise text.
func parseArgs(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		out[i] = parseArg(arg)
	}
	return out
}

func parseArg(arg string) interface{} {
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	switch strings.ToLower(arg) {
	case "true", "false":
		return cast.ToBool(arg)
	case "null":
		return nil
	}
	return arg
}
