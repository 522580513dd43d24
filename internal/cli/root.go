// Package cli implements the priceimport command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PriceImport/internal/config"
	"github.com/JonMunkholm/PriceImport/internal/logging"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg *config.Config
}

// NewRootCmd creates the root command with the run, validate and history subcommands.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	var (
		envFile   string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:           "priceimport",
		Short:         "Bulk import product prices from CSV or XLSX",
		Version:       version,
		Example:       rootExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				config.LoadDotEnv(envFile)
			} else {
				config.LoadDotEnv()
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if logFormat != "" {
				cfg.Logging.Format = logFormat
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error, critical")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(newRunCmd(a), newValidateCmd(a), newHistoryCmd(a))
	return cmd
}

const rootExample = `  # Import store-level prices
  priceimport run --file prices.csv

  # Import global prices from a workbook, stopping at the first invalid row
  priceimport run --file prices.xlsx --scoped=false --strategy stop-on-error

  # Check a file without writing anything
  priceimport validate --file prices.csv --errors-out errors.xlsx

  # Show the last 10 runs
  priceimport history --limit 10`
