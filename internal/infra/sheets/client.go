// Package sheets backs every tabular store in the service (intake log,
// ledgers, directory, contributor and asset registries) with the Google
// Sheets API.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// Client wraps the Sheets service. One Client serves every spreadsheet the
// service touches; spreadsheet IDs are passed per call.
type Client struct {
	svc *sheetsapi.Service
	log zerolog.Logger
}

// NewClient builds an authenticated client. An empty credentialsFile falls
// back to application default credentials.
func NewClient(ctx context.Context, credentialsFile string, log zerolog.Logger) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Client{svc: svc, log: log}, nil
}

// AppendRows appends rows after the last non-empty row of sheet and returns a
// reference for each appended row, derived from the API's updated range.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheet string, rows [][]interface{}) ([]domain.RowRef, error) {
	vr := &sheetsapi.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.
		Append(spreadsheetID, sheet, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: append to %s!%s: %w", spreadsheetID, sheet, err)
	}
	if resp.Updates == nil {
		return nil, fmt.Errorf("sheets: append to %s!%s: no update info in response", spreadsheetID, sheet)
	}

	start, err := startRowOfRange(resp.Updates.UpdatedRange)
	if err != nil {
		return nil, fmt.Errorf("sheets: append to %s!%s: %w", spreadsheetID, sheet, err)
	}
	refs := make([]domain.RowRef, 0, len(rows))
	for i := range rows {
		refs = append(refs, domain.RowRef{Sheet: sheet, Row: start + i})
	}
	return refs, nil
}

// ReadRows reads every populated row from startRow to the end of sheet,
// flattened to strings.
func (c *Client) ReadRows(ctx context.Context, spreadsheetID, sheet string, startRow int) ([][]string, error) {
	rng := fmt.Sprintf("%s!A%d:Z", sheet, startRow)
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s!%s: %w", spreadsheetID, rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		out = append(out, cells)
	}
	return out, nil
}

// RowCount returns the number of populated rows in sheet, header included.
func (c *Client) RowCount(ctx context.Context, spreadsheetID, sheet string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheets: count rows of %s!%s: %w", spreadsheetID, sheet, err)
	}
	return len(resp.Values), nil
}

// updateCells writes values into a fixed range. RAW input keeps row-reference
// strings like "Transactions:5" from being reinterpreted as anything else.
func (c *Client) updateCells(ctx context.Context, spreadsheetID, rng string, values []interface{}) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{values}}
	_, err := c.svc.Spreadsheets.Values.
		Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s!%s: %w", spreadsheetID, rng, err)
	}
	return nil
}

var rangeStartPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// startRowOfRange extracts the first row number from an A1 range like
// "Transactions!A5:F6".
func startRowOfRange(rng string) (int, error) {
	m := rangeStartPattern.FindStringSubmatch(rng)
	if m == nil {
		return 0, fmt.Errorf("unparseable updated range %q", rng)
	}
	return strconv.Atoi(m[1])
}
