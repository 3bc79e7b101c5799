package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacao-collective/bookkeeper/internal/config"
	"github.com/cacao-collective/bookkeeper/internal/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <reference> [reference...]",
	Short: "Resolve ledger references against the directory",
	Long: `Resolve one or more ledger references the way the posting pipeline
would, printing the matching strategy and the physical target for each.

References can be ledger names ("AGL-10"), shortcuts ("agl10"), store URLs
("https://agroverse.shop/agl10") or the literal "default".

Example:
  ledgerctl resolve AGL-10 sef1 "https://agroverse.shop/agl10"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runResolve,
}

func runResolve(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	ctx := context.Background()
	res, _, err := buildResolver(ctx, cfg)
	exitOnError(err, "failed to build resolver")

	for _, raw := range args {
		target, resolution := res.Resolve(ctx, domain.LedgerReference{Raw: raw})

		marker := "MATCH"
		if !resolution.Matched {
			marker = "FALLBACK"
		}
		fmt.Printf("%-8s %-40s -> %s (%s)\n", marker, raw, target.Name, resolution.Strategy)
		fmt.Printf("         sheet: %s!%s\n", target.SpreadsheetID, target.Sheet)
		if resolution.Annotation != "" {
			fmt.Printf("         note: %s\n", resolution.Annotation)
		}
	}
}
