package domain

import (
	"fmt"
	"strings"
)

// DefaultLedgerToken is the literal reference for the organization-wide ledger.
const DefaultLedgerToken = "default"

// LedgerReference is a logical pointer to the ledger an event belongs to,
// prior to resolution. Raw is either the literal "default", a shortcut such
// as "AGL6", or a URL-shaped pointer. Embedded marks references that arrived
// as a bracketed prefix on the currency/item string and were stripped off.
type LedgerReference struct {
	Raw      string
	Embedded bool
}

// IsDefault reports whether the reference names the organization-wide ledger,
// either literally or by absence.
func (r LedgerReference) IsDefault() bool {
	raw := strings.ToLower(strings.TrimSpace(r.Raw))
	return raw == "" || raw == DefaultLedgerToken
}

// LedgerShape selects the row convention of a ledger store.
type LedgerShape int

const (
	// ShapeDefault is the organization-wide single-entry shape with a
	// running ledger line counter.
	ShapeDefault LedgerShape = iota
	// ShapeManaged is the per-shipment double-entry shape with an
	// Assets/Liability/Equity category tag.
	ShapeManaged
)

func (s LedgerShape) String() string {
	if s == ShapeManaged {
		return "managed"
	}
	return "default"
}

// LedgerTarget is the resolved physical destination for a posting.
type LedgerTarget struct {
	Name          string // canonical ledger name, e.g. "AGL-10" or "default"
	SpreadsheetID string
	Sheet         string
	Shape         LedgerShape
}

// Category tags used by the managed double-entry shape.
const (
	CategoryAssets    = "Assets"
	CategoryLiability = "Liability"
	CategoryEquity    = "Equity"
)

// PostedRow is one physical row appended to a ledger. Rows are never mutated
// after creation; corrections are new offsetting rows.
type PostedRow struct {
	Line        int // running counter, default shape only
	Date        string
	Description string
	Actor       string
	Amount      float64
	Currency    string
	Category    string // empty on the default shape
}

// RowRef locates a posted row inside its sheet.
type RowRef struct {
	Sheet string
	Row   int // 1-based
}

func (r RowRef) String() string {
	return fmt.Sprintf("%s:%d", r.Sheet, r.Row)
}

// JoinRowRefs renders refs as the comma-joined literal text stored on a
// PROCESSED intake row. Stored as text so sheet engines never reinterpret
// the numbers.
func JoinRowRefs(refs []RowRef) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, ",")
}
