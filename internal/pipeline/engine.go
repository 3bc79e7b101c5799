// Package pipeline wires the normalizer, resolver and poster into the
// idempotent posting engine invoked by both the webhook trigger and the
// periodic sweep.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/domain"
	"github.com/cacao-collective/bookkeeper/internal/metrics"
	"github.com/cacao-collective/bookkeeper/internal/normalize"
	"github.com/cacao-collective/bookkeeper/internal/resolver"
)

// Poster is the slice of the poster the engine needs.
type Poster interface {
	Post(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, res resolver.Resolution) ([]domain.RowRef, error)
}

// Engine runs the normalize -> resolve -> post pipeline for intake rows.
// Both trigger paths share one Engine, so hash dedup and the status gate are
// common to webhook and sweep invocations.
type Engine struct {
	intake     IntakeLog
	normalizer *normalize.Normalizer
	resolver   *resolver.Resolver
	poster     Poster
	seen       *HashRegistry
	windowDays int
	now        func() time.Time
	log        zerolog.Logger
}

// New builds an Engine. windowDays bounds the sweep to recent rows; zero
// disables the window.
func New(intake IntakeLog, n *normalize.Normalizer, r *resolver.Resolver, p Poster, seen *HashRegistry, windowDays int, log zerolog.Logger) *Engine {
	return &Engine{
		intake:     intake,
		normalizer: n,
		resolver:   r,
		poster:     p,
		seen:       seen,
		windowDays: windowDays,
		now:        time.Now,
		log:        log,
	}
}

// Prime seeds the dedup registry with the hashes of already-PROCESSED rows.
// The registry is in-memory, so a restarted process must rebuild it from the
// intake log before the first trigger fires; without this a duplicate row
// swept after a restart would post a second time.
func (e *Engine) Prime(ctx context.Context) error {
	hashes, err := e.intake.ProcessedHashes(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: load processed hashes: %w", err)
	}
	for _, h := range hashes {
		e.seen.Record(h)
	}
	e.log.Info().Int("hashes", len(hashes)).Msg("dedup registry primed from intake log")
	return nil
}

// ProcessRow runs the full pipeline for one intake row and returns a short
// human-readable status. Only a PostError is returned as an error; skips and
// no-ops report through the status string.
func (e *Engine) ProcessRow(ctx context.Context, index int) (string, error) {
	entry, err := e.intake.Row(ctx, index)
	if err != nil {
		return "", fmt.Errorf("pipeline: read row %d: %w", index, err)
	}

	if entry.Status.Terminal() {
		return fmt.Sprintf("row %d already %s", index, entry.Status), nil
	}

	// The hash is written back exactly once, whether or not the row
	// produces an event, so re-scans never re-examine a fully-seen row.
	hash := entry.Hash
	if hash == "" {
		hash = normalize.ComputeHash(entry.Contributor, entry.Body, entry.StatusDate)
		if err := e.intake.SetHash(ctx, index, hash); err != nil {
			return "", fmt.Errorf("pipeline: set hash on row %d: %w", index, err)
		}
		entry.Hash = hash
	}

	if e.seen.Seen(hash) {
		metrics.EventsSkipped.WithLabelValues("duplicate").Inc()
		return fmt.Sprintf("row %d duplicate of processed event", index), nil
	}

	ev, err := e.normalizer.Normalize(ctx, entry)
	if err != nil {
		if domain.IsSkip(err) {
			metrics.EventsSkipped.WithLabelValues("no_event").Inc()
			e.log.Debug().Int("row", index).Err(err).Msg("row produced no event")
			return fmt.Sprintf("row %d skipped: %v", index, err), nil
		}
		return "", fmt.Errorf("pipeline: normalize row %d: %w", index, err)
	}

	target, res := e.resolver.Resolve(ctx, ev.Ledger)
	if !res.Matched {
		metrics.UnresolvedReferences.Inc()
	}

	// Compare-and-skip guard: re-read the row immediately before posting.
	// The underlying store has no row locking, so two racing callers can
	// still both pass; the sweep's low frequency keeps that window narrow,
	// and a true double fire posts identical rows flagged for manual
	// reconciliation.
	current, err := e.intake.Row(ctx, index)
	if err != nil {
		return "", fmt.Errorf("pipeline: re-read row %d: %w", index, err)
	}
	if current.Status.Terminal() {
		return fmt.Sprintf("row %d claimed by a concurrent caller (%s)", index, current.Status), nil
	}
	if e.seen.Seen(hash) {
		return fmt.Sprintf("row %d duplicate of processed event", index), nil
	}

	refs, err := e.poster.Post(ctx, ev, target, res)
	if err != nil {
		metrics.PostErrors.Inc()
		reason := err.Error()
		if markErr := e.intake.MarkError(ctx, index, reason); markErr != nil {
			e.log.Error().Err(markErr).Int("row", index).Msg("failed to mark row ERROR")
		}
		return "", fmt.Errorf("pipeline: post row %d: %w", index, err)
	}

	// Commit point: the status transition and hash record make every later
	// invocation a no-op.
	if err := e.intake.MarkProcessed(ctx, index, refs); err != nil {
		// The rows are durably posted; a failed status write is surfaced
		// but must not look like a posting failure.
		e.log.Error().Err(err).Int("row", index).Msg("posted rows but failed to mark row PROCESSED")
	}
	e.seen.Record(hash)

	return fmt.Sprintf("row %d posted %d row(s) to %s", index, len(refs), target.Name), nil
}

// Sweep processes every NEW row in the window. Each row is isolated: one
// failure never aborts the batch. Returns a short summary for the caller.
func (e *Engine) Sweep(ctx context.Context) (string, error) {
	start := e.now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var since time.Time
	if e.windowDays > 0 {
		since = start.AddDate(0, 0, -e.windowDays)
	}

	rows, err := e.intake.ListPending(ctx, since)
	if err != nil {
		return "", fmt.Errorf("pipeline: list pending rows: %w", err)
	}

	var posted, skipped, failed int
	for _, row := range rows {
		status, err := e.ProcessRow(ctx, row.RowIndex)
		switch {
		case err != nil:
			failed++
			e.log.Error().Err(err).Int("row", row.RowIndex).Msg("sweep: row failed")
		case strings.Contains(status, "posted"):
			posted++
		default:
			skipped++
		}
	}

	summary := fmt.Sprintf("sweep: %d rows, %d posted, %d skipped, %d failed", len(rows), posted, skipped, failed)
	e.log.Info().
		Int("rows", len(rows)).
		Int("posted", posted).
		Int("skipped", skipped).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("sweep finished")
	return summary, nil
}
