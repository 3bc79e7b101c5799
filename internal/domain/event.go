// Package domain holds the core types of the bookkeeping engine: normalized
// events, ledger references and targets, posted rows, and the processing
// status taxonomy shared by the intake log and the pipeline.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// EventKind identifies which financial/inventory event a chat message reports.
type EventKind string

const (
	KindSale             EventKind = "SALE"
	KindMovement         EventKind = "MOVEMENT"
	KindExpense          EventKind = "EXPENSE"
	KindCapitalInjection EventKind = "CAPITAL_INJECTION"
)

// Kinds lists every recognized event kind, in webhook-selector order.
var Kinds = []EventKind{KindSale, KindMovement, KindExpense, KindCapitalInjection}

// ParseKind maps a webhook selector ("sale", "movement", ...) to an EventKind.
func ParseKind(s string) (EventKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SALE", "SALES":
		return KindSale, true
	case "MOVEMENT", "INVENTORY_MOVEMENT":
		return KindMovement, true
	case "EXPENSE":
		return KindExpense, true
	case "CAPITAL_INJECTION", "CAPITAL-INJECTION", "CAPITALINJECTION":
		return KindCapitalInjection, true
	}
	return "", false
}

// Status is the lifecycle state of an intake log row. PROCESSING is implicit:
// a pipeline run is synchronous, so only the terminal states are persisted.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusProcessed Status = "PROCESSED"
	StatusError     Status = "ERROR"
)

// Terminal reports whether a status will never change again without an
// operator re-queue.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

// RawLogEntry is one append-only row of the intake log. Immutable once
// written except for Hash (set exactly once by the normalizer) and the
// status fields (advanced by the pipeline).
type RawLogEntry struct {
	RowIndex    int // 1-based position in the intake sheet
	UpdateID    int64
	ChatID      int64
	ChatName    string
	MessageID   int64
	Contributor string // display name of the reporter
	Body        string
	StatusDate  string // YYYYMMDD or YYYY-MM-DD
	Hash        string // idempotency hash, empty until first sight
	Status      Status
	StatusNote  string // row refs on PROCESSED, reason on ERROR
}

// NormalizedEvent is the typed, transient form of a qualifying raw entry.
type NormalizedEvent struct {
	Kind       EventKind
	StatusDate string
	Body       string // original message text, retained for audit
	Sender     string // manager / source of the movement
	Recipient  string // recipient / contributor
	Currency   string // currency or inventory item identifier
	Amount     float64
	Ledger     LedgerReference
	AssetCode  string   // serialized-asset identifier, if any
	Attachment []string // attachment identifiers, if any
	Hash       string
}

// Validate enforces the event invariants: a finite, non-zero amount and a
// non-empty currency/item identifier.
func (e *NormalizedEvent) Validate() error {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return fmt.Errorf("event amount is not finite: %v", e.Amount)
	}
	if e.Amount == 0 {
		return fmt.Errorf("event amount is zero")
	}
	if strings.TrimSpace(e.Currency) == "" {
		return fmt.Errorf("event currency/item is empty")
	}
	return nil
}
