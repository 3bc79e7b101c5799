package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/directory"
	"github.com/cacao-collective/bookkeeper/internal/domain"
	"github.com/cacao-collective/bookkeeper/internal/normalize"
	"github.com/cacao-collective/bookkeeper/internal/poster"
	"github.com/cacao-collective/bookkeeper/internal/resolver"
)

// memIntake is an in-memory intake log with the same point-read/point-write
// surface as the sheet-backed one.
type memIntake struct {
	mu   sync.Mutex
	rows map[int]*domain.RawLogEntry
}

func newMemIntake(entries ...domain.RawLogEntry) *memIntake {
	m := &memIntake{rows: make(map[int]*domain.RawLogEntry)}
	for i := range entries {
		e := entries[i]
		if e.Status == "" {
			e.Status = domain.StatusNew
		}
		m.rows[e.RowIndex] = &e
	}
	return m
}

func (m *memIntake) Row(ctx context.Context, index int) (domain.RawLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[index]
	if !ok {
		return domain.RawLogEntry{}, errors.New("no such row")
	}
	return *row, nil
}

func (m *memIntake) ListPending(ctx context.Context, since time.Time) ([]domain.RawLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RawLogEntry
	for _, row := range m.rows {
		if row.Status == domain.StatusNew {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memIntake) ProcessedHashes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, row := range m.rows {
		if row.Status == domain.StatusProcessed && row.Hash != "" {
			out = append(out, row.Hash)
		}
	}
	return out, nil
}

func (m *memIntake) SetHash(ctx context.Context, index int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[index].Hash = hash
	return nil
}

func (m *memIntake) MarkProcessed(ctx context.Context, index int, refs []domain.RowRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[index].Status = domain.StatusProcessed
	m.rows[index].StatusNote = domain.JoinRowRefs(refs)
	return nil
}

func (m *memIntake) MarkError(ctx context.Context, index int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[index].Status = domain.StatusError
	m.rows[index].StatusNote = reason
	return nil
}

// memStore collects appended ledger rows per sheet.
type memStore struct {
	mu     sync.Mutex
	sheets map[string][][]interface{}
}

func newMemStore() *memStore { return &memStore{sheets: make(map[string][][]interface{})} }

func (s *memStore) AppendRows(ctx context.Context, id, sheet string, rows [][]interface{}) ([]domain.RowRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id + "/" + sheet
	refs := make([]domain.RowRef, 0, len(rows))
	for _, row := range rows {
		s.sheets[key] = append(s.sheets[key], row)
		refs = append(refs, domain.RowRef{Sheet: sheet, Row: len(s.sheets[key]) + 1})
	}
	return refs, nil
}

func (s *memStore) ReadRows(ctx context.Context, id, sheet string, startRow int) ([][]string, error) {
	return nil, nil
}

func (s *memStore) RowCount(ctx context.Context, id, sheet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sheets[id+"/"+sheet]) + 1, nil
}

func (s *memStore) totalRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rows := range s.sheets {
		n += len(rows)
	}
	return n
}

type staticSource []directory.Entry

func (s staticSource) ListEntries(ctx context.Context) ([]directory.Entry, error) { return s, nil }

const movementBody = "[INVENTORY MOVEMENT]\n" +
	"- Manager Name: alice\n" +
	"- Recipient Name: bob\n" +
	"- Inventory Item: [AGL6] Reais\n" +
	"- Quantity: 1"

func testEngine(t *testing.T, intake IntakeLog, store *memStore, p Poster) *Engine {
	t.Helper()
	log := zerolog.Nop()

	seen := NewHashRegistry()
	norm := normalize.New(0, nil, seen, log)

	dir := directory.New(staticSource{
		{Name: "AGL6", Pointer: "https://docs.google.com/spreadsheets/d/sheet-agl6/edit"},
		{Name: "SEF1", Pointer: "https://docs.google.com/spreadsheets/d/sheet-sef1/edit"},
	}, nil, log)
	defaultTarget := domain.LedgerTarget{Name: "default", SpreadsheetID: "org", Sheet: "Ledger", Shape: domain.ShapeDefault}
	res := resolver.New(dir, defaultTarget, "Transactions", log)

	if p == nil {
		p = poster.New(store, log)
	}
	return New(intake, norm, res, p, seen, 7, log)
}

func TestProcessRow_PostsMovementScenario(t *testing.T) {
	intake := newMemIntake(domain.RawLogEntry{
		RowIndex: 2, Contributor: "alice", Body: movementBody, StatusDate: time.Now().Format("20060102"),
	})
	store := newMemStore()
	e := testEngine(t, intake, store, nil)

	status, err := e.ProcessRow(context.Background(), 2)
	if err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	if !strings.Contains(status, "posted 2 row(s) to AGL6") {
		t.Errorf("status = %q", status)
	}

	row, _ := intake.Row(context.Background(), 2)
	if row.Status != domain.StatusProcessed {
		t.Errorf("status = %s, want PROCESSED", row.Status)
	}
	if row.Hash == "" {
		t.Error("hash not written back")
	}
	if !strings.Contains(row.StatusNote, "Transactions:") {
		t.Errorf("status note = %q, want row refs", row.StatusNote)
	}
	if store.totalRows() != 2 {
		t.Errorf("ledger rows = %d, want 2", store.totalRows())
	}
}

func TestProcessRow_Idempotent(t *testing.T) {
	intake := newMemIntake(domain.RawLogEntry{
		RowIndex: 1, Contributor: "alice", Body: movementBody, StatusDate: time.Now().Format("20060102"),
	})
	store := newMemStore()
	e := testEngine(t, intake, store, nil)
	ctx := context.Background()

	// Webhook fires, then the sweep sees the same row.
	if _, err := e.ProcessRow(ctx, 1); err != nil {
		t.Fatalf("first ProcessRow: %v", err)
	}
	status, err := e.ProcessRow(ctx, 1)
	if err != nil {
		t.Fatalf("second ProcessRow: %v", err)
	}
	if !strings.Contains(status, "already PROCESSED") {
		t.Errorf("second status = %q", status)
	}
	if store.totalRows() != 2 {
		t.Errorf("ledger rows = %d after reprocessing, want 2", store.totalRows())
	}
}

func TestProcessRow_HashWrittenOnceEvenForSkips(t *testing.T) {
	intake := newMemIntake(domain.RawLogEntry{
		RowIndex: 3, Contributor: "alice", Body: "good morning all", StatusDate: time.Now().Format("20060102"),
	})
	e := testEngine(t, intake, newMemStore(), nil)

	status, err := e.ProcessRow(context.Background(), 3)
	if err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	if !strings.Contains(status, "skipped") {
		t.Errorf("status = %q, want skip", status)
	}
	row, _ := intake.Row(context.Background(), 3)
	if row.Hash == "" {
		t.Error("hash must be written even when no event is produced")
	}
	if row.Status != domain.StatusNew {
		t.Errorf("skipped row status = %s, want NEW", row.Status)
	}
}

func TestProcessRow_UnresolvedFallsBackToDefault(t *testing.T) {
	body := "[CAPITAL INJECTION]\n- Amount: 500\n- Currency: USD\n- Ledger: NOPE9"
	intake := newMemIntake(domain.RawLogEntry{
		RowIndex: 4, Contributor: "carol", Body: body, StatusDate: time.Now().Format("20060102"),
	})
	store := newMemStore()
	e := testEngine(t, intake, store, nil)

	status, err := e.ProcessRow(context.Background(), 4)
	if err != nil {
		t.Fatalf("ProcessRow: %v", err)
	}
	if !strings.Contains(status, "posted 1 row(s) to default") {
		t.Errorf("status = %q", status)
	}
	if len(store.sheets["org/Ledger"]) != 1 {
		t.Fatal("expected one row on the default ledger")
	}
	desc := store.sheets["org/Ledger"][0][2].(string)
	if !strings.Contains(desc, "NOPE9") {
		t.Errorf("description %q must carry the original reference", desc)
	}
}

// failingPoster fails posts for one recipient, to test sweep isolation.
type failingPoster struct {
	inner   Poster
	failFor string
}

func (f *failingPoster) Post(ctx context.Context, ev *domain.NormalizedEvent, target domain.LedgerTarget, res resolver.Resolution) ([]domain.RowRef, error) {
	if ev.Recipient == f.failFor {
		return nil, &domain.PostError{Target: target, Err: errors.New("store unreachable")}
	}
	return f.inner.Post(ctx, ev, target, res)
}

func TestSweep_IsolatesFailures(t *testing.T) {
	today := time.Now().Format("20060102")
	badBody := strings.ReplaceAll(movementBody, "bob", "eve")
	intake := newMemIntake(
		domain.RawLogEntry{RowIndex: 1, Contributor: "alice", Body: movementBody, StatusDate: today},
		domain.RawLogEntry{RowIndex: 2, Contributor: "alice", Body: badBody, StatusDate: today},
	)
	store := newMemStore()
	e := testEngine(t, intake, store, &failingPoster{inner: poster.New(store, zerolog.Nop()), failFor: "eve"})

	summary, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !strings.Contains(summary, "1 posted") || !strings.Contains(summary, "1 failed") {
		t.Errorf("summary = %q", summary)
	}

	good, _ := intake.Row(context.Background(), 1)
	bad, _ := intake.Row(context.Background(), 2)
	if good.Status != domain.StatusProcessed {
		t.Errorf("good row status = %s", good.Status)
	}
	if bad.Status != domain.StatusError {
		t.Errorf("bad row status = %s, want ERROR", bad.Status)
	}
	if bad.StatusNote == "" {
		t.Error("ERROR row must carry a reason")
	}
}

func TestSweep_OverProcessedRowsIsNoOp(t *testing.T) {
	intake := newMemIntake(domain.RawLogEntry{
		RowIndex: 1, Contributor: "alice", Body: movementBody, StatusDate: time.Now().Format("20060102"),
	})
	store := newMemStore()
	e := testEngine(t, intake, store, nil)
	ctx := context.Background()

	if _, err := e.ProcessRow(ctx, 1); err != nil {
		t.Fatal(err)
	}
	rowsBefore := store.totalRows()

	summary, err := e.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if store.totalRows() != rowsBefore {
		t.Errorf("sweep appended rows to a PROCESSED row: %d -> %d", rowsBefore, store.totalRows())
	}
	if !strings.Contains(summary, "0 posted") {
		t.Errorf("summary = %q", summary)
	}
}

func TestProcessRow_DuplicateHashSurvivesRestart(t *testing.T) {
	// Row 1 is posted, then the process restarts: a fresh engine with an
	// empty registry sees duplicate row 2. Priming from the intake log
	// must restore the dedup gate so the duplicate still skips.
	today := time.Now().Format("20060102")
	intake := newMemIntake(
		domain.RawLogEntry{RowIndex: 1, Contributor: "alice", Body: movementBody, StatusDate: today},
		domain.RawLogEntry{RowIndex: 2, Contributor: "alice", Body: movementBody, StatusDate: today},
	)
	store := newMemStore()
	ctx := context.Background()

	first := testEngine(t, intake, store, nil)
	if _, err := first.ProcessRow(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if store.totalRows() != 2 {
		t.Fatalf("ledger rows = %d before restart, want 2", store.totalRows())
	}

	restarted := testEngine(t, intake, store, nil)
	if err := restarted.Prime(ctx); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	status, err := restarted.ProcessRow(ctx, 2)
	if err != nil {
		t.Fatalf("ProcessRow row 2: %v", err)
	}
	if !strings.Contains(status, "duplicate") {
		t.Errorf("status = %q, want duplicate skip", status)
	}
	if store.totalRows() != 2 {
		t.Errorf("ledger rows = %d after restart, want 2 (single posting)", store.totalRows())
	}
}

func TestProcessRow_DuplicateHashAcrossRows(t *testing.T) {
	// Two raw rows carrying the identical message (webhook retry wrote it
	// twice): only the first may post.
	today := time.Now().Format("20060102")
	intake := newMemIntake(
		domain.RawLogEntry{RowIndex: 1, Contributor: "alice", Body: movementBody, StatusDate: today},
		domain.RawLogEntry{RowIndex: 2, Contributor: "alice", Body: movementBody, StatusDate: today},
	)
	store := newMemStore()
	e := testEngine(t, intake, store, nil)
	ctx := context.Background()

	if _, err := e.ProcessRow(ctx, 1); err != nil {
		t.Fatal(err)
	}
	status, err := e.ProcessRow(ctx, 2)
	if err != nil {
		t.Fatalf("ProcessRow row 2: %v", err)
	}
	if !strings.Contains(status, "duplicate") {
		t.Errorf("status = %q, want duplicate skip", status)
	}
	if store.totalRows() != 2 {
		t.Errorf("ledger rows = %d, want 2 (single posting)", store.totalRows())
	}
}
