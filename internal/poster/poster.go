// Package poster appends ledger rows for normalized events and runs the
// ordered best-effort side effects that follow a durable write. It is the
// only component that mutates ledger stores.
package poster

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/domain"
	"github.com/cacao-collective/bookkeeper/internal/ledger"
	"github.com/cacao-collective/bookkeeper/internal/metrics"
	"github.com/cacao-collective/bookkeeper/internal/resolver"
)

// ContributorDirectory is the shared roster of members. Append-only.
type ContributorDirectory interface {
	Exists(ctx context.Context, name string) (bool, error)
	Add(ctx context.Context, name string) error
}

// AssetRegistry tracks serialized assets and their custodians.
type AssetRegistry interface {
	Reassign(ctx context.Context, assetCode, custodian string) error
}

// AttachmentMirror persists expense/movement attachment records to the
// mirror store.
type AttachmentMirror interface {
	Exists(ctx context.Context, path string) (bool, error)
	Write(ctx context.Context, path string, data []byte) error
}

// AuditMirror streams posted rows to the analytics store.
type AuditMirror interface {
	Record(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, rows []domain.PostedRow, refs []domain.RowRef) error
}

// Notifier delivers fire-and-forget operator notifications.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Poster posts events to their resolved targets. Every collaborator except
// the store is optional; a nil collaborator disables that side effect.
type Poster struct {
	store        ledger.Store
	contributors ContributorDirectory
	assets       AssetRegistry
	attachments  AttachmentMirror
	audit        AuditMirror
	notifier     Notifier
	log          zerolog.Logger
}

// New builds a Poster over store.
func New(store ledger.Store, log zerolog.Logger) *Poster {
	return &Poster{store: store, log: log}
}

func (p *Poster) WithContributors(d ContributorDirectory) *Poster { p.contributors = d; return p }
func (p *Poster) WithAssets(r AssetRegistry) *Poster              { p.assets = r; return p }
func (p *Poster) WithAttachments(m AttachmentMirror) *Poster      { p.attachments = m; return p }
func (p *Poster) WithAudit(a AuditMirror) *Poster                 { p.audit = a; return p }
func (p *Poster) WithNotifier(n Notifier) *Poster                 { p.notifier = n; return p }

// Post appends the correctly shaped rows for ev to target and returns their
// locations. The ledger append is the durability boundary: side effects run
// after it, each caught independently, and never revert posted rows.
func (p *Poster) Post(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, res resolver.Resolution) ([]domain.RowRef, error) {
	description := p.description(ev, res)

	nextLine := 0
	if target.Shape == domain.ShapeDefault {
		count, err := p.store.RowCount(ctx, target.SpreadsheetID, target.Sheet)
		if err != nil {
			return nil, &domain.PostError{Target: target, Err: fmt.Errorf("row count: %w", err)}
		}
		nextLine = count
	}

	rows, err := ledger.BuildRows(ev, target, description, nextLine)
	if err != nil {
		return nil, &domain.PostError{Target: target, Err: err}
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, ledger.Cells(row, target.Shape))
	}

	refs, err := p.store.AppendRows(ctx, target.SpreadsheetID, target.Sheet, values)
	if err != nil {
		return nil, &domain.PostError{Target: target, Err: err}
	}

	p.log.Info().
		Str("kind", string(ev.Kind)).
		Str("ledger", target.Name).
		Str("strategy", res.Strategy).
		Int("rows", len(refs)).
		Msg("posted ledger rows")
	metrics.EventsPosted.WithLabelValues(string(ev.Kind), target.Shape.String()).Inc()

	p.runSideEffects(ctx, ev, target, rows, refs)
	return refs, nil
}

// description builds the provenance text written to each posted row. The
// unresolved annotation rides along so a fallback post stays auditable.
func (p *Poster) description(ev *domain.NormalizedEvent, res resolver.Resolution) string {
	desc := fmt.Sprintf("%s %s", ev.Kind, ev.Currency)
	if res.Annotation != "" {
		desc = fmt.Sprintf("%s [%s]", desc, res.Annotation)
	}
	return desc
}

type sideEffect struct {
	name string
	run  func(context.Context) error
}

// runSideEffects executes the post-commit actions in order. Each failure is
// wrapped as a SideEffectError, logged and counted; none aborts the rest.
func (p *Poster) runSideEffects(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, rows []domain.PostedRow, refs []domain.RowRef) {
	effects := []sideEffect{
		{"contributor_add", func(ctx context.Context) error { return p.ensureContributor(ctx, ev.Recipient) }},
		{"asset_reassign", func(ctx context.Context) error { return p.reassignAsset(ctx, ev) }},
		{"attachment_mirror", func(ctx context.Context) error { return p.mirrorAttachments(ctx, ev) }},
		{"audit_mirror", func(ctx context.Context) error { return p.mirrorAudit(ctx, ev, target, rows, refs) }},
		{"notify", func(ctx context.Context) error { return p.notify(ctx, ev, target, refs) }},
	}

	for _, effect := range effects {
		if err := effect.run(ctx); err != nil {
			seErr := &domain.SideEffectError{Effect: effect.name, Err: err}
			p.log.Warn().Err(seErr).Str("ledger", target.Name).Msg("post-commit side effect failed")
			metrics.SideEffectFailures.WithLabelValues(effect.name).Inc()
		}
	}
}

func (p *Poster) ensureContributor(ctx context.Context, name string) error {
	if p.contributors == nil || name == "" {
		return nil
	}
	exists, err := p.contributors.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := p.contributors.Add(ctx, name); err != nil {
		return err
	}
	p.log.Info().Str("contributor", name).Msg("added contributor to directory")
	return nil
}

func (p *Poster) reassignAsset(ctx context.Context, ev *domain.NormalizedEvent) error {
	if p.assets == nil || ev.AssetCode == "" {
		return nil
	}
	return p.assets.Reassign(ctx, ev.AssetCode, ev.Recipient)
}

// mirrorAttachments records expense/movement attachments on the mirror. The
// attachment bytes live with the intake collaborator; the mirror stores the
// event provenance under a stable per-hash path.
func (p *Poster) mirrorAttachments(ctx context.Context, ev *domain.NormalizedEvent) error {
	if p.attachments == nil || len(ev.Attachment) == 0 {
		return nil
	}
	if ev.Kind != domain.KindExpense && ev.Kind != domain.KindMovement {
		return nil
	}
	prefix := ev.Hash
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	for _, name := range ev.Attachment {
		path := fmt.Sprintf("attachments/%s/%s", prefix, name)
		exists, err := p.attachments.Exists(ctx, path)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := p.attachments.Write(ctx, path, []byte(ev.Body)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poster) mirrorAudit(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, rows []domain.PostedRow, refs []domain.RowRef) error {
	if p.audit == nil {
		return nil
	}
	return p.audit.Record(ctx, ev, target, rows, refs)
}

func (p *Poster) notify(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, refs []domain.RowRef) error {
	if p.notifier == nil {
		return nil
	}
	text := fmt.Sprintf("%s\n\nPosted to %s (%s)\nhttps://docs.google.com/spreadsheets/d/%s",
		ev.Body, target.Name, domain.JoinRowRefs(refs), target.SpreadsheetID)
	return p.notifier.Send(ctx, text)
}
