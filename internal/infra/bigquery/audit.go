// Package bigquery mirrors posted ledger rows into the analytics warehouse
// and serves the monthly statistics aggregations built on top of it.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// AuditRow is one posted ledger row in the warehouse mirror.
type AuditRow struct {
	AuditID string `bigquery:"audit_id"` // REQUIRED

	EventKind string `bigquery:"event_kind"` // REQUIRED
	EventHash string `bigquery:"event_hash"` // REQUIRED

	LedgerName    string `bigquery:"ledger_name"`    // REQUIRED
	SpreadsheetID string `bigquery:"spreadsheet_id"` // REQUIRED
	RowRef        string `bigquery:"row_ref"`        // NULLABLE

	EntryDate   string  `bigquery:"entry_date"` // REQUIRED, YYYY-MM-DD
	Description string  `bigquery:"description"`
	Actor       string  `bigquery:"actor"`
	Amount      float64 `bigquery:"amount"`   // REQUIRED
	Currency    string  `bigquery:"currency"` // REQUIRED
	Category    string  `bigquery:"category"` // NULLABLE, empty on default-ledger rows

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// AuditMirror streams posted rows into <dataset>.<table> and answers
// aggregation queries over it.
type AuditMirror struct {
	client  *bigquery.Client
	dataset string
	table   string
	now     func() time.Time
	log     zerolog.Logger
}

// NewAuditMirror builds a mirror over an owned client. Close releases it.
func NewAuditMirror(ctx context.Context, project, dataset, table string, log zerolog.Logger) (*AuditMirror, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("audit: bigquery client: %w", err)
	}
	return &AuditMirror{client: client, dataset: dataset, table: table, now: time.Now, log: log}, nil
}

func (m *AuditMirror) Close() error {
	return m.client.Close()
}

// Record streams one audit row per posted ledger row.
func (m *AuditMirror) Record(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, rows []domain.PostedRow, refs []domain.RowRef) error {
	if len(rows) == 0 {
		return nil
	}

	batch := make([]*AuditRow, 0, len(rows))
	for i, row := range rows {
		ref := ""
		if i < len(refs) {
			ref = refs[i].String()
		}
		batch = append(batch, &AuditRow{
			AuditID:       uuid.NewString(),
			EventKind:     string(ev.Kind),
			EventHash:     ev.Hash,
			LedgerName:    target.Name,
			SpreadsheetID: target.SpreadsheetID,
			RowRef:        ref,
			EntryDate:     row.Date,
			Description:   row.Description,
			Actor:         row.Actor,
			Amount:        row.Amount,
			Currency:      row.Currency,
			Category:      row.Category,
			CreatedTS:     m.now().UTC(),
		})
	}

	inserter := m.client.Dataset(m.dataset).Table(m.table).Inserter()
	if err := inserter.Put(ctx, batch); err != nil {
		return fmt.Errorf("audit: inserting %d rows: %w", len(batch), err)
	}
	m.log.Debug().Int("rows", len(batch)).Str("ledger", target.Name).Msg("audit rows mirrored")
	return nil
}

// MonthlyStat is one (month, ledger, currency) aggregate.
type MonthlyStat struct {
	Month    string  `bigquery:"month"`
	Ledger   string  `bigquery:"ledger"`
	Currency string  `bigquery:"currency"`
	RowCount int64   `bigquery:"row_count"`
	Inflow   float64 `bigquery:"inflow"`
	Outflow  float64 `bigquery:"outflow"`
}

// MonthlyStats aggregates mirrored rows for one calendar month ("2025-04").
func (m *AuditMirror) MonthlyStats(ctx context.Context, month string) ([]MonthlyStat, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT
			FORMAT_DATE('%%Y-%%m', PARSE_DATE('%%Y-%%m-%%d', entry_date)) AS month,
			ledger_name AS ledger,
			currency,
			COUNT(*) AS row_count,
			SUM(IF(amount > 0, amount, 0)) AS inflow,
			SUM(IF(amount < 0, -amount, 0)) AS outflow
		FROM %s.%s
		WHERE STARTS_WITH(entry_date, @month)
		GROUP BY month, ledger, currency
		ORDER BY ledger, currency
	`, m.dataset, m.table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "month", Value: month},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: monthly stats query: %w", err)
	}

	var stats []MonthlyStat
	for {
		var s MonthlyStat
		err := it.Next(&s)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("audit: monthly stats row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}
