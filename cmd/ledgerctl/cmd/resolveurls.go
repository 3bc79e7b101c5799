package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacao-collective/bookkeeper/internal/config"
)

var resolveURLsCmd = &cobra.Command{
	Use:   "resolve-urls",
	Short: "Chase directory pointers and cache the final URLs",
	Long: `Walk the ledger directory, follow the redirect chain behind every
pointer that has no cached resolved URL yet, and write the final URL back
into the listing sheet. Later pipeline runs read the cached column instead
of chasing redirects live.

Entries already cached, entries pointing straight at a spreadsheet, and
pointers that fail to resolve are skipped.

Example:
  ledgerctl resolve-urls`,
	Args: cobra.NoArgs,
	Run:  runResolveURLs,
}

func runResolveURLs(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	exitOnError(err, "failed to load configuration")

	ctx := context.Background()
	dir, source, _, err := buildDirectory(ctx, cfg)
	exitOnError(err, "failed to build directory")

	written, err := dir.CacheResolvedURLs(ctx, source)
	exitOnError(err, "failed to cache resolved urls")

	fmt.Printf("cached %d resolved url(s)\n", written)
}
