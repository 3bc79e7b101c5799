package sheets

import (
	"testing"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

func TestStartRowOfRange(t *testing.T) {
	tests := []struct {
		rng     string
		want    int
		wantErr bool
	}{
		{"Transactions!A5:F6", 5, false},
		{"'Intake Log'!H12", 12, false},
		{"Ledger!AA101:AG101", 101, false},
		{"garbage", 0, true},
	}
	for _, tt := range tests {
		got, err := startRowOfRange(tt.rng)
		if (err != nil) != tt.wantErr {
			t.Errorf("startRowOfRange(%q) err = %v", tt.rng, err)
			continue
		}
		if got != tt.want {
			t.Errorf("startRowOfRange(%q) = %d, want %d", tt.rng, got, tt.want)
		}
	}
}

func TestEntryFromCells(t *testing.T) {
	cells := []interface{}{
		"8841", "-100200300", "Agroverse Shipments", "77", "alice",
		"[EXPENSE]\n- Amount: 12.50", "20250401", "", "", "",
	}
	entry := entryFromCells(9, cells)

	if entry.RowIndex != 9 {
		t.Errorf("RowIndex = %d", entry.RowIndex)
	}
	if entry.UpdateID != 8841 || entry.ChatID != -100200300 || entry.MessageID != 77 {
		t.Errorf("ids = %d %d %d", entry.UpdateID, entry.ChatID, entry.MessageID)
	}
	if entry.Contributor != "alice" || entry.StatusDate != "20250401" {
		t.Errorf("contributor/date = %q %q", entry.Contributor, entry.StatusDate)
	}
	if entry.Status != domain.StatusNew {
		t.Errorf("empty status cell must read as NEW, got %s", entry.Status)
	}
}

func TestEntryFromCells_ShortRow(t *testing.T) {
	entry := entryFromCells(3, []interface{}{"1", "2", "chat"})
	if entry.Body != "" || entry.Status != domain.StatusNew {
		t.Errorf("short row: body=%q status=%s", entry.Body, entry.Status)
	}
}

func TestColumnLetter(t *testing.T) {
	if columnLetter(colHash) != "H" || columnLetter(colStatus) != "I" || columnLetter(colStatusNote) != "J" {
		t.Errorf("letters = %s %s %s", columnLetter(colHash), columnLetter(colStatus), columnLetter(colStatusNote))
	}
}
