package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/directory"
)

// Directory listing column layout. The listing sheet carries shipment
// metadata the service ignores; only the name, the ledger pointer and the
// cached resolved URL matter here.
const (
	dirColName        = 0
	dirColPointer     = 11
	dirColResolvedURL = 13
)

// DirectorySource reads the ledger directory listing sheet.
type DirectorySource struct {
	client        *Client
	spreadsheetID string
	sheet         string
	log           zerolog.Logger
}

func NewDirectorySource(client *Client, spreadsheetID, sheet string, log zerolog.Logger) *DirectorySource {
	return &DirectorySource{client: client, spreadsheetID: spreadsheetID, sheet: sheet, log: log}
}

// ListEntries returns the directory rows in sheet order. Rows without a name
// are skipped; rows without a pointer are kept so name-based matching still
// sees them.
func (s *DirectorySource) ListEntries(ctx context.Context) ([]directory.Entry, error) {
	rows, err := s.client.ReadRows(ctx, s.spreadsheetID, s.sheet, 2)
	if err != nil {
		return nil, fmt.Errorf("directory: list entries: %w", err)
	}

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	entries := make([]directory.Entry, 0, len(rows))
	for i, row := range rows {
		name := cell(row, dirColName)
		if name == "" {
			continue
		}
		entries = append(entries, directory.Entry{
			Name:        name,
			Pointer:     cell(row, dirColPointer),
			ResolvedURL: cell(row, dirColResolvedURL),
			Row:         i + 2,
		})
	}
	s.log.Debug().Int("entries", len(entries)).Msg("directory listing loaded")
	return entries, nil
}

// WriteResolvedURL caches a chased-down pointer URL back into the listing so
// later runs skip the redirect chain. Row indices are 1-based sheet rows.
func (s *DirectorySource) WriteResolvedURL(ctx context.Context, row int, url string) error {
	rng := fmt.Sprintf("%s!%s%d", s.sheet, columnLetter(dirColResolvedURL), row)
	if err := s.client.updateCells(ctx, s.spreadsheetID, rng, []interface{}{url}); err != nil {
		return fmt.Errorf("directory: write resolved url on row %d: %w", row, err)
	}
	return nil
}
