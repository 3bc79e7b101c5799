package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// Intake log column layout. The webhook writer owns columns A-G; this service
// only ever writes the hash and status columns.
const (
	colUpdateID = iota
	colChatID
	colChatName
	colMessageID
	colContributor
	colBody
	colStatusDate
	colHash
	colStatus
	colStatusNote
	intakeColumns
)

// IntakeLog reads and annotates the chat intake sheet.
type IntakeLog struct {
	client        *Client
	spreadsheetID string
	sheet         string
	log           zerolog.Logger
}

func NewIntakeLog(client *Client, spreadsheetID, sheet string, log zerolog.Logger) *IntakeLog {
	return &IntakeLog{client: client, spreadsheetID: spreadsheetID, sheet: sheet, log: log}
}

// Row point-reads one intake entry by sheet row index.
func (l *IntakeLog) Row(ctx context.Context, index int) (domain.RawLogEntry, error) {
	rng := fmt.Sprintf("%s!A%d:%s%d", l.sheet, index, columnLetter(intakeColumns-1), index)
	resp, err := l.client.svc.Spreadsheets.Values.Get(l.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return domain.RawLogEntry{}, fmt.Errorf("intake: read row %d: %w", index, err)
	}
	if len(resp.Values) == 0 {
		return domain.RawLogEntry{}, fmt.Errorf("intake: row %d is empty", index)
	}
	return entryFromCells(index, resp.Values[0]), nil
}

// ListPending returns the NEW rows with a status date at or after since. Rows
// with an unparseable date are included; downstream skip handling owns them.
func (l *IntakeLog) ListPending(ctx context.Context, since time.Time) ([]domain.RawLogEntry, error) {
	rows, err := l.client.ReadRows(ctx, l.spreadsheetID, l.sheet, 2)
	if err != nil {
		return nil, fmt.Errorf("intake: list rows: %w", err)
	}

	var out []domain.RawLogEntry
	for i, cells := range rows {
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		entry := entryFromCells(i+2, values)
		if entry.Body == "" || entry.Status != domain.StatusNew {
			continue
		}
		if !since.IsZero() {
			if t, ok := parseIntakeDate(entry.StatusDate); ok && t.Before(since) {
				continue
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// ProcessedHashes returns the hash of every PROCESSED row, for rebuilding
// the dedup gate after a restart. ERROR rows are excluded: they produced no
// posted output, so their hashes must stay postable.
func (l *IntakeLog) ProcessedHashes(ctx context.Context) ([]string, error) {
	rows, err := l.client.ReadRows(ctx, l.spreadsheetID, l.sheet, 2)
	if err != nil {
		return nil, fmt.Errorf("intake: list processed hashes: %w", err)
	}

	var hashes []string
	for i, cells := range rows {
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		entry := entryFromCells(i+2, values)
		if entry.Status == domain.StatusProcessed && entry.Hash != "" {
			hashes = append(hashes, entry.Hash)
		}
	}
	return hashes, nil
}

// SetHash writes the idempotency hash into the row's hash cell.
func (l *IntakeLog) SetHash(ctx context.Context, index int, hash string) error {
	rng := fmt.Sprintf("%s!%s%d", l.sheet, columnLetter(colHash), index)
	if err := l.client.updateCells(ctx, l.spreadsheetID, rng, []interface{}{hash}); err != nil {
		return fmt.Errorf("intake: set hash on row %d: %w", index, err)
	}
	return nil
}

// MarkProcessed records terminal success and the posted row references as
// literal text.
func (l *IntakeLog) MarkProcessed(ctx context.Context, index int, refs []domain.RowRef) error {
	return l.setStatus(ctx, index, domain.StatusProcessed, domain.JoinRowRefs(refs))
}

// MarkError records terminal failure with a short reason.
func (l *IntakeLog) MarkError(ctx context.Context, index int, reason string) error {
	return l.setStatus(ctx, index, domain.StatusError, reason)
}

func (l *IntakeLog) setStatus(ctx context.Context, index int, status domain.Status, note string) error {
	rng := fmt.Sprintf("%s!%s%d:%s%d", l.sheet, columnLetter(colStatus), index, columnLetter(colStatusNote), index)
	if err := l.client.updateCells(ctx, l.spreadsheetID, rng, []interface{}{string(status), note}); err != nil {
		return fmt.Errorf("intake: mark row %d %s: %w", index, status, err)
	}
	l.log.Info().Int("row", index).Str("status", string(status)).Msg("intake row status updated")
	return nil
}

func entryFromCells(index int, cells []interface{}) domain.RawLogEntry {
	cell := func(i int) string {
		if i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(cells[i]))
	}
	cellInt := func(i int) int64 {
		n, _ := strconv.ParseInt(cell(i), 10, 64)
		return n
	}
	entry := domain.RawLogEntry{
		RowIndex:    index,
		UpdateID:    cellInt(colUpdateID),
		ChatID:      cellInt(colChatID),
		ChatName:    cell(colChatName),
		MessageID:   cellInt(colMessageID),
		Contributor: cell(colContributor),
		Body:        cell(colBody),
		StatusDate:  cell(colStatusDate),
		Hash:        cell(colHash),
		Status:      domain.Status(cell(colStatus)),
		StatusNote:  cell(colStatusNote),
	}
	if entry.Status == "" {
		entry.Status = domain.StatusNew
	}
	return entry
}

func parseIntakeDate(s string) (time.Time, bool) {
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// columnLetter maps a zero-based column index to its A1 letter. The intake
// layout never exceeds column Z.
func columnLetter(i int) string {
	return string(rune('A' + i))
}
