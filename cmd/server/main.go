package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cacao-collective/bookkeeper/internal/api"
	"github.com/cacao-collective/bookkeeper/internal/config"
	"github.com/cacao-collective/bookkeeper/internal/directory"
	"github.com/cacao-collective/bookkeeper/internal/domain"
	infraBQ "github.com/cacao-collective/bookkeeper/internal/infra/bigquery"
	"github.com/cacao-collective/bookkeeper/internal/infra/gcs"
	infraSheets "github.com/cacao-collective/bookkeeper/internal/infra/sheets"
	"github.com/cacao-collective/bookkeeper/internal/jobs"
	"github.com/cacao-collective/bookkeeper/internal/jobs/inmemory"
	"github.com/cacao-collective/bookkeeper/internal/logger"
	"github.com/cacao-collective/bookkeeper/internal/normalize"
	"github.com/cacao-collective/bookkeeper/internal/notify"
	"github.com/cacao-collective/bookkeeper/internal/pipeline"
	"github.com/cacao-collective/bookkeeper/internal/poster"
	"github.com/cacao-collective/bookkeeper/internal/resolver"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("BOOKKEEPER_CONFIG"), "path to TOML config file")
		port       = flag.Int("port", 0, "HTTP server port (overrides config)")
	)
	flag.Parse()

	// .env is optional; deployed instances use real environment variables.
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx := context.Background()

	sheetsClient, err := infraSheets.NewClient(ctx, cfg.Google.CredentialsFile, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sheets client")
	}

	intake := infraSheets.NewIntakeLog(sheetsClient, cfg.Intake.SpreadsheetID, cfg.Intake.Sheet, log)
	dirSource := infraSheets.NewDirectorySource(sheetsClient, cfg.Directory.SpreadsheetID, cfg.Directory.Sheet, log)
	dir := directory.New(dirSource, nil, log).WithMaxHops(cfg.Directory.MaxHops)

	defaultTarget := domain.LedgerTarget{
		Name:          domain.DefaultLedgerToken,
		SpreadsheetID: cfg.Ledger.DefaultSpreadsheetID,
		Sheet:         cfg.Ledger.DefaultSheet,
		Shape:         domain.ShapeDefault,
	}
	res := resolver.New(dir, defaultTarget, cfg.Ledger.ManagedSheet, log)

	seen := pipeline.NewHashRegistry()

	var extractor normalize.FieldExtractor
	if cfg.Model.Name != "" {
		extractor = normalize.NewGeminiExtractor(cfg.Model.Name)
	} else {
		log.Warn().Msg("no model configured - fallback field extraction disabled")
	}
	norm := normalize.New(cfg.Intake.RetentionDays, extractor, seen, log)

	post := poster.New(sheetsClient, log).
		WithContributors(infraSheets.NewContributors(sheetsClient, cfg.Directory.SpreadsheetID, "Contributors", log)).
		WithAssets(infraSheets.NewAssets(sheetsClient, cfg.Directory.SpreadsheetID, "Assets", log))

	if cfg.BigQuery.Project != "" {
		audit, err := infraBQ.NewAuditMirror(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.AuditTable, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create audit mirror")
		}
		defer audit.Close()
		post = post.WithAudit(audit)
	} else {
		log.Warn().Msg("no BigQuery project configured - audit mirroring disabled")
	}

	if cfg.GCS.Bucket != "" {
		mirror, err := gcs.NewMirror(ctx, cfg.GCS.Bucket, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create attachment mirror")
		}
		defer mirror.Close()
		post = post.WithAttachments(mirror)
	} else {
		log.Warn().Msg("no GCS bucket configured - attachment mirroring disabled")
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		post = post.WithNotifier(notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log))
	} else {
		log.Warn().Msg("no Telegram credentials configured - notifications disabled")
	}

	engine := pipeline.New(intake, norm, res, post, seen, cfg.Sweep.WindowDays, log)
	if err := engine.Prime(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to prime dedup registry from intake log")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		postJob, ok := job.(*jobs.PostEventJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		status, err := engine.ProcessRow(ctx, postJob.RowIndex)
		if err != nil {
			return err
		}
		postJob.Result = status
		log.Info().Str("job_id", postJob.JobID).Int("row", postJob.RowIndex).Str("result", status).Msg("post-event job finished")
		return nil
	}

	go func() {
		log.Info().Msg("starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("job worker stopped with error")
		}
	}()

	// Periodic sweep covers rows the webhook never fired for.
	sweepTicker := time.NewTicker(time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-sweepTicker.C:
				if _, err := engine.Sweep(workerCtx); err != nil {
					log.Error().Err(err).Msg("periodic sweep failed")
				}
			}
		}
	}()

	apiServer := api.NewServer(jobQueue, jobStore, engine, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      apiServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Msg("starting bookkeeper server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error stopping job queue")
	}

	log.Info().Msg("server exited")
}
