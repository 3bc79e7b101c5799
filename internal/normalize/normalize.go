// Package normalize turns raw intake log rows into typed events and computes
// the idempotency hash that guards against double posting.
package normalize

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// FieldExtractor is the AI-assisted fallback used only when structured
// parsing fails. Its output feeds field extraction, never dedup.
type FieldExtractor interface {
	Extract(ctx context.Context, body string) (map[string]string, error)
}

// Dedup answers whether an idempotency hash has already produced posted
// output.
type Dedup interface {
	Seen(hash string) bool
}

// Normalizer implements normalize(rawEntry) -> NormalizedEvent | Skip.
type Normalizer struct {
	retentionDays int
	extractor     FieldExtractor // nil disables the fallback
	dedup         Dedup
	now           func() time.Time
	log           zerolog.Logger
}

// New builds a Normalizer. extractor may be nil; dedup may be nil when the
// caller performs its own duplicate gating.
func New(retentionDays int, extractor FieldExtractor, dedup Dedup, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		retentionDays: retentionDays,
		extractor:     extractor,
		dedup:         dedup,
		now:           time.Now,
		log:           log,
	}
}

// Normalize derives a typed event from entry. A nil event with a SkipError
// means the row is fully seen but produced nothing to post; any other error
// is a pipeline failure.
func (n *Normalizer) Normalize(ctx context.Context, entry domain.RawLogEntry) (*domain.NormalizedEvent, error) {
	if _, err := n.parseStatusDate(entry.StatusDate); err != nil {
		return nil, err
	}

	hash := entry.Hash
	if hash == "" {
		hash = ComputeHash(entry.Contributor, entry.Body, entry.StatusDate)
	}
	if n.dedup != nil && n.dedup.Seen(hash) {
		return nil, domain.Skipf("duplicate idempotency hash %s", hash[:12])
	}

	kind, fields, ok := parseStructured(entry.Body)
	if !ok {
		if n.extractor == nil {
			return nil, domain.Skipf("no known event pattern")
		}
		extracted, err := n.extractor.Extract(ctx, entry.Body)
		if err != nil {
			n.log.Warn().Err(err).Int("row", entry.RowIndex).Msg("fallback extraction failed")
			return nil, domain.Skipf("no known event pattern (fallback failed)")
		}
		k, kOK := domain.ParseKind(extracted["kind"])
		if !kOK {
			return nil, domain.Skipf("no known event pattern (fallback returned %q)", extracted["kind"])
		}
		kind = k
		fields = extracted
	}

	ev, err := n.buildEvent(kind, fields, entry)
	if err != nil {
		return nil, err
	}
	ev.Hash = hash
	return ev, nil
}

// parseStatusDate validates the date and the retention window.
func (n *Normalizer) parseStatusDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var t time.Time
	var err error
	for _, layout := range []string{"20060102", "2006-01-02"} {
		t, err = time.Parse(layout, s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, domain.Skipf("malformed status date %q", s)
	}
	if n.retentionDays > 0 {
		cutoff := n.now().AddDate(0, 0, -n.retentionDays)
		if t.Before(cutoff) {
			return time.Time{}, domain.Skipf("status date %s outside %d-day retention window", s, n.retentionDays)
		}
	}
	return t, nil
}

func (n *Normalizer) buildEvent(kind domain.EventKind, fields map[string]string, entry domain.RawLogEntry) (*domain.NormalizedEvent, error) {
	ev := &domain.NormalizedEvent{
		Kind:       kind,
		StatusDate: entry.StatusDate,
		Body:       entry.Body,
		Sender:     field(fields, "manager name", "sender", "from"),
		Recipient:  field(fields, "recipient name", "contributor name", "customer name", "to"),
		AssetCode:  field(fields, "asset code", "serial", "serial number"),
	}
	if ev.Sender == "" {
		ev.Sender = entry.Contributor
	}
	if ev.Recipient == "" {
		ev.Recipient = entry.Contributor
	}

	item := field(fields, "inventory item", "currency", "item")
	ledgerRef := field(fields, "ledger")
	embedded := false
	if ref, stripped := splitEmbeddedLedger(item); ref != "" {
		item = stripped
		if ledgerRef == "" {
			ledgerRef = ref
			embedded = true
		}
	}
	ev.Currency = item
	ev.Ledger = domain.LedgerReference{Raw: ledgerRef, Embedded: embedded}

	amountText := field(fields, "quantity", "amount", "sale price", "price")
	amount, ok := parseAmount(amountText)
	if !ok {
		return nil, domain.Skipf("unparseable amount %q", amountText)
	}
	// Expenses are money out: stored negative regardless of how the member
	// typed them.
	if kind == domain.KindExpense && amount > 0 {
		amount = -amount
	}
	ev.Amount = amount

	if att := field(fields, "attachment", "attachments", "receipt"); att != "" {
		for _, a := range strings.Split(att, ",") {
			if a = strings.TrimSpace(a); a != "" {
				ev.Attachment = append(ev.Attachment, a)
			}
		}
	}

	if err := ev.Validate(); err != nil {
		return nil, domain.Skipf("invalid event: %v", err)
	}
	return ev, nil
}
