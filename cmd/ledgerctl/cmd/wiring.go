package cmd

import (
	"context"

	"github.com/cacao-collective/bookkeeper/internal/config"
	"github.com/cacao-collective/bookkeeper/internal/directory"
	"github.com/cacao-collective/bookkeeper/internal/domain"
	infraSheets "github.com/cacao-collective/bookkeeper/internal/infra/sheets"
	"github.com/cacao-collective/bookkeeper/internal/normalize"
	"github.com/cacao-collective/bookkeeper/internal/pipeline"
	"github.com/cacao-collective/bookkeeper/internal/poster"
	"github.com/cacao-collective/bookkeeper/internal/resolver"
)

// buildDirectory wires the sheets-backed directory from configuration.
func buildDirectory(ctx context.Context, cfg config.Config) (*directory.Directory, *infraSheets.DirectorySource, *infraSheets.Client, error) {
	client, err := infraSheets.NewClient(ctx, cfg.Google.CredentialsFile, log)
	if err != nil {
		return nil, nil, nil, err
	}
	source := infraSheets.NewDirectorySource(client, cfg.Directory.SpreadsheetID, cfg.Directory.Sheet, log)
	dir := directory.New(source, nil, log).WithMaxHops(cfg.Directory.MaxHops)
	return dir, source, client, nil
}

// buildResolver wires the resolver over the sheets-backed directory.
func buildResolver(ctx context.Context, cfg config.Config) (*resolver.Resolver, *infraSheets.Client, error) {
	dir, _, client, err := buildDirectory(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	defaultTarget := domain.LedgerTarget{
		Name:          domain.DefaultLedgerToken,
		SpreadsheetID: cfg.Ledger.DefaultSpreadsheetID,
		Sheet:         cfg.Ledger.DefaultSheet,
		Shape:         domain.ShapeDefault,
	}
	return resolver.New(dir, defaultTarget, cfg.Ledger.ManagedSheet, log), client, nil
}

// buildEngine wires a full pipeline engine for one-off CLI runs. Side
// effects beyond the ledger append (notifications, mirrors) are left off;
// operator runs post rows, nothing else.
func buildEngine(ctx context.Context, cfg config.Config) (*pipeline.Engine, error) {
	res, client, err := buildResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	seen := pipeline.NewHashRegistry()

	var extractor normalize.FieldExtractor
	if cfg.Model.Name != "" {
		extractor = normalize.NewGeminiExtractor(cfg.Model.Name)
	}
	norm := normalize.New(cfg.Intake.RetentionDays, extractor, seen, log)

	intake := infraSheets.NewIntakeLog(client, cfg.Intake.SpreadsheetID, cfg.Intake.Sheet, log)
	post := poster.New(client, log)

	engine := pipeline.New(intake, norm, res, post, seen, cfg.Sweep.WindowDays, log)
	if err := engine.Prime(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}
