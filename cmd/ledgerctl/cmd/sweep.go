package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacao-collective/bookkeeper/internal/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Process pending intake rows once",
	Long: `Run a single sweep over NEW intake rows inside the configured
window, posting qualifying events exactly as the server's periodic sweep
would.

Example:
  ledgerctl sweep`,
	Run: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	ctx := context.Background()
	engine, err := buildEngine(ctx, cfg)
	exitOnError(err, "failed to build pipeline")

	summary, err := engine.Sweep(ctx)
	exitOnError(err, "sweep failed")

	fmt.Println(summary)
}
