// Package ledger defines the store boundary shared by the organization-wide
// ledger and the managed per-shipment ledgers, and builds the correctly
// shaped rows for each.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// Store is the only surface through which ledger sheets are touched. The
// default store and managed stores differ only in column shape.
type Store interface {
	// AppendRows appends rows at the end of the sheet and returns one
	// RowRef per appended row.
	AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]interface{}) ([]domain.RowRef, error)

	// ReadRows reads data rows starting at startRow (1-based).
	ReadRows(ctx context.Context, spreadsheetID, sheet string, startRow int) ([][]string, error)

	// RowCount reports the number of occupied rows, header included.
	RowCount(ctx context.Context, spreadsheetID, sheet string) (int, error)
}

// BuildRows produces the physical rows for an event routed to target. The
// returned PostedRow slice mirrors the cell values for audit purposes.
// nextLine is the running ledger-line counter, consulted only by the default
// shape.
func BuildRows(ev *domain.NormalizedEvent, target domain.LedgerTarget, description string, nextLine int) ([]domain.PostedRow, error) {
	switch target.Shape {
	case domain.ShapeDefault:
		return []domain.PostedRow{defaultRow(ev, description, nextLine)}, nil
	case domain.ShapeManaged:
		return managedRows(ev, description), nil
	}
	return nil, fmt.Errorf("ledger: unknown shape %v", target.Shape)
}

// defaultRow is the organization-wide single-entry shape: line counter,
// date, description, actor, signed amount, currency, provenance.
func defaultRow(ev *domain.NormalizedEvent, description string, line int) domain.PostedRow {
	return domain.PostedRow{
		Line:        line,
		Date:        displayDate(ev.StatusDate),
		Description: description,
		Actor:       ev.Sender,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
	}
}

// managedRows is the double-entry shape. Movements, sales and expenses post
// a debit/credit pair summing to zero. Capital injections intentionally
// break that identity: an Assets row and an Equity row, both positive,
// represent new value entering the system.
func managedRows(ev *domain.NormalizedEvent, description string) []domain.PostedRow {
	date := displayDate(ev.StatusDate)

	if ev.Kind == domain.KindCapitalInjection {
		return []domain.PostedRow{
			{Date: date, Description: description, Actor: ev.Recipient, Amount: ev.Amount, Currency: ev.Currency, Category: domain.CategoryAssets},
			{Date: date, Description: description, Actor: ev.Sender, Amount: ev.Amount, Currency: ev.Currency, Category: domain.CategoryEquity},
		}
	}

	return []domain.PostedRow{
		{Date: date, Description: description, Actor: ev.Sender, Amount: -ev.Amount, Currency: ev.Currency, Category: domain.CategoryAssets},
		{Date: date, Description: description, Actor: ev.Recipient, Amount: ev.Amount, Currency: ev.Currency, Category: domain.CategoryAssets},
	}
}

// Cells renders a PostedRow into the cell values for the given shape.
func Cells(row domain.PostedRow, shape domain.LedgerShape) []interface{} {
	if shape == domain.ShapeDefault {
		return []interface{}{
			row.Line,
			row.Date,
			row.Description,
			row.Actor,
			row.Amount,
			row.Currency,
			"", // provenance column, filled by operators
		}
	}
	return []interface{}{
		row.Date,
		row.Description,
		row.Actor,
		row.Amount,
		row.Currency,
		row.Category,
	}
}

// displayDate renders a status date the way ledger sheets record it.
func displayDate(statusDate string) string {
	s := strings.TrimSpace(statusDate)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
