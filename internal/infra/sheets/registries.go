package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Contributors is the shared roster of people who may appear on ledger rows.
// Names live in column A; matching is case-insensitive.
type Contributors struct {
	client        *Client
	spreadsheetID string
	sheet         string
	log           zerolog.Logger
}

func NewContributors(client *Client, spreadsheetID, sheet string, log zerolog.Logger) *Contributors {
	return &Contributors{client: client, spreadsheetID: spreadsheetID, sheet: sheet, log: log}
}

func (c *Contributors) Exists(ctx context.Context, name string) (bool, error) {
	rows, err := c.client.ReadRows(ctx, c.spreadsheetID, c.sheet, 2)
	if err != nil {
		return false, fmt.Errorf("contributors: list: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, row := range rows {
		if len(row) > 0 && strings.ToLower(row[0]) == want {
			return true, nil
		}
	}
	return false, nil
}

func (c *Contributors) Add(ctx context.Context, name string) error {
	if _, err := c.client.AppendRows(ctx, c.spreadsheetID, c.sheet, [][]interface{}{{name}}); err != nil {
		return fmt.Errorf("contributors: add %q: %w", name, err)
	}
	c.log.Info().Str("name", name).Msg("contributor added to directory")
	return nil
}

// Assets tracks custodianship of serialized assets: code in column A,
// current custodian in column B.
type Assets struct {
	client        *Client
	spreadsheetID string
	sheet         string
	log           zerolog.Logger
}

func NewAssets(client *Client, spreadsheetID, sheet string, log zerolog.Logger) *Assets {
	return &Assets{client: client, spreadsheetID: spreadsheetID, sheet: sheet, log: log}
}

// Reassign points the asset's custodian cell at the new holder. An unknown
// code is an error; movements must not invent assets.
func (a *Assets) Reassign(ctx context.Context, code, custodian string) error {
	rows, err := a.client.ReadRows(ctx, a.spreadsheetID, a.sheet, 2)
	if err != nil {
		return fmt.Errorf("assets: list: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(code))
	for i, row := range rows {
		if len(row) == 0 || strings.ToLower(row[0]) != want {
			continue
		}
		rng := fmt.Sprintf("%s!B%d", a.sheet, i+2)
		if err := a.client.updateCells(ctx, a.spreadsheetID, rng, []interface{}{custodian}); err != nil {
			return fmt.Errorf("assets: reassign %q: %w", code, err)
		}
		a.log.Info().Str("code", code).Str("custodian", custodian).Msg("asset custodian reassigned")
		return nil
	}
	return fmt.Errorf("assets: unknown asset code %q", code)
}
