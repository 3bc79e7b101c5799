package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cacao-collective/bookkeeper/internal/config"
	infraBQ "github.com/cacao-collective/bookkeeper/internal/infra/bigquery"
)

var statsMonth string

var statsCmd = &cobra.Command{
	Use:   "backfill-stats",
	Short: "Aggregate monthly statistics from the audit mirror",
	Long: `Aggregate posted-row statistics for one calendar month from the
BigQuery audit mirror and print them per ledger and currency.

Example:
  ledgerctl backfill-stats --month 2025-04`,
	Run: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsMonth, "month", "", "calendar month to aggregate (YYYY-MM, default: previous month)")
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	if cfg.BigQuery.Project == "" {
		exitOnError(fmt.Errorf("no BigQuery project configured"), "invalid configuration")
	}

	month := statsMonth
	if month == "" {
		month = time.Now().AddDate(0, -1, 0).Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		exitOnError(err, "invalid --month, want YYYY-MM")
	}

	ctx := context.Background()
	audit, err := infraBQ.NewAuditMirror(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.AuditTable, log)
	exitOnError(err, "failed to create audit client")
	defer audit.Close()

	stats, err := audit.MonthlyStats(ctx, month)
	exitOnError(err, "failed to aggregate monthly stats")

	fmt.Printf("\n=== Monthly Statistics: %s ===\n", month)
	if len(stats) == 0 {
		fmt.Println("(no posted rows)")
		return
	}
	fmt.Printf("%-20s %-10s %8s %14s %14s\n", "LEDGER", "CURRENCY", "ROWS", "INFLOW", "OUTFLOW")
	for _, s := range stats {
		fmt.Printf("%-20s %-10s %8d %14.2f %14.2f\n", s.Ledger, s.Currency, s.RowCount, s.Inflow, s.Outflow)
	}
	fmt.Println()
}
