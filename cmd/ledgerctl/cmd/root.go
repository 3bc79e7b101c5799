// Package cmd provides the ledgerctl CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cacao-collective/bookkeeper/internal/logger"
)

var (
	cfgFile string
	debug   bool
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tooling for the bookkeeping service",
	Long: `ledgerctl is the operator companion to the bookkeeper server.

It supports:
- Resolving ledger references against the directory, with the matching
  strategy used
- Running a one-off sweep over pending intake rows
- Backfilling the directory's resolved-url cache
- Backfilling monthly statistics from the audit mirror

Example:
  ledgerctl resolve AGL-10 "https://agroverse.shop/agl10"
  ledgerctl sweep
  ledgerctl backfill-stats --month 2025-04`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		log = logger.New()
		if !debug {
			log = log.Level(zerolog.InfoLevel)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("BOOKKEEPER_CONFIG"), "path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(resolveURLsCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statsCmd)
}

func exitOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
