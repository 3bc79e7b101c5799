package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

type staticSource []Entry

func (s staticSource) ListEntries(ctx context.Context) ([]Entry, error) { return s, nil }

type countingSource struct {
	entries []Entry
	calls   int
}

func (c *countingSource) ListEntries(ctx context.Context) ([]Entry, error) {
	c.calls++
	return c.entries, nil
}

func noFollowClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestEntries_ListedOncePerRun(t *testing.T) {
	src := &countingSource{entries: []Entry{{Name: "AGL6", Pointer: "https://example.com/agl6"}}}
	d := New(src, noFollowClient(), zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		entries, err := d.Entries(ctx)
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %d, want 1", len(entries))
		}
	}
	if src.calls != 1 {
		t.Errorf("source listed %d times, want 1", src.calls)
	}
}

func TestResolvePointer_FollowsChainAndCaches(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/short":
			http.Redirect(w, r, srv.URL+"/mid", http.StatusFound)
		case "/mid":
			http.Redirect(w, r, srv.URL+"/final", http.StatusMovedPermanently)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	defer srv.Close()

	d := New(staticSource{}, noFollowClient(), zerolog.Nop())
	ctx := context.Background()

	final, err := d.ResolvePointer(ctx, srv.URL+"/short")
	if err != nil {
		t.Fatalf("ResolvePointer: %v", err)
	}
	if !strings.HasSuffix(final, "/final") {
		t.Errorf("final = %q, want .../final", final)
	}

	before := hits.Load()
	again, err := d.ResolvePointer(ctx, srv.URL+"/short")
	if err != nil {
		t.Fatalf("ResolvePointer (cached): %v", err)
	}
	if again != final {
		t.Errorf("cached resolution %q != %q", again, final)
	}
	if hits.Load() != before {
		t.Errorf("cache miss: server hit %d more times", hits.Load()-before)
	}
}

func TestResolvePointer_HopBound(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every path redirects to a fresh one: an unbounded chain.
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	d := New(staticSource{}, noFollowClient(), zerolog.Nop())
	_, err := d.ResolvePointer(context.Background(), srv.URL+"/loop")
	if err == nil {
		t.Fatal("expected error beyond the hop bound")
	}
	if !strings.Contains(err.Error(), "redirect hops") {
		t.Errorf("err = %v, want hop-bound error", err)
	}
}

func TestResolvePointer_ConfiguredHopBound(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			http.Redirect(w, r, srv.URL+"/b", http.StatusFound)
		case "/b":
			http.Redirect(w, r, srv.URL+"/c", http.StatusFound)
		case "/c":
			http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	// Two hops is not enough for a three-redirect chain.
	tight := New(staticSource{}, noFollowClient(), zerolog.Nop()).WithMaxHops(2)
	_, err := tight.ResolvePointer(ctx, srv.URL+"/a")
	if err == nil {
		t.Fatal("expected error with a two-hop bound over a three-redirect chain")
	}
	if !strings.Contains(err.Error(), "exceeded 2 redirect hops") {
		t.Errorf("err = %v, want the configured bound in the message", err)
	}

	// Four hops covers the chain.
	roomy := New(staticSource{}, noFollowClient(), zerolog.Nop()).WithMaxHops(4)
	final, err := roomy.ResolvePointer(ctx, srv.URL+"/a")
	if err != nil {
		t.Fatalf("ResolvePointer: %v", err)
	}
	if !strings.HasSuffix(final, "/final") {
		t.Errorf("final = %q, want .../final", final)
	}

	// Nonsense values keep the default bound.
	d := New(staticSource{}, noFollowClient(), zerolog.Nop()).WithMaxHops(0)
	if d.maxHops != MaxRedirectHops {
		t.Errorf("maxHops = %d after WithMaxHops(0), want default %d", d.maxHops, MaxRedirectHops)
	}
}

type recordingWriter struct {
	rows []int
	urls []string
	fail map[int]error
}

func (w *recordingWriter) WriteResolvedURL(ctx context.Context, row int, url string) error {
	if err, ok := w.fail[row]; ok {
		return err
	}
	w.rows = append(w.rows, row)
	w.urls = append(w.urls, url)
	return nil
}

func TestCacheResolvedURLs(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agl6":
			http.Redirect(w, r, srv.URL+"/spreadsheets/d/SHEET_AGL6/edit", http.StatusFound)
		case "/dead":
			http.Error(w, "gone", http.StatusNotFound)
		default:
			fmt.Fprint(w, "ok")
		}
	}))
	defer srv.Close()

	src := staticSource{
		// Needs chasing: redirects to a spreadsheet URL.
		{Name: "AGL6", Pointer: srv.URL + "/agl6", Row: 2},
		// Already cached: left alone.
		{Name: "AGL7", Pointer: srv.URL + "/agl7", ResolvedURL: "https://docs.google.com/spreadsheets/d/CACHED/edit", Row: 3},
		// Direct spreadsheet pointer: nothing to chase.
		{Name: "SEF1", Pointer: "https://docs.google.com/spreadsheets/d/DIRECT/edit", Row: 4},
		// No pointer at all.
		{Name: "SEF2", Row: 5},
		// Unknown source row: nowhere to write the result.
		{Name: "AGL8", Pointer: srv.URL + "/agl8", Row: 0},
	}
	d := New(src, noFollowClient(), zerolog.Nop())

	w := &recordingWriter{}
	written, err := d.CacheResolvedURLs(context.Background(), w)
	if err != nil {
		t.Fatalf("CacheResolvedURLs: %v", err)
	}
	if written != 1 {
		t.Fatalf("written = %d, want 1", written)
	}
	if len(w.rows) != 1 || w.rows[0] != 2 {
		t.Fatalf("rows written = %v, want [2]", w.rows)
	}
	if w.urls[0] != srv.URL+"/spreadsheets/d/SHEET_AGL6/edit" {
		t.Errorf("url written = %q, want the chased spreadsheet url", w.urls[0])
	}

	// The in-memory listing reflects the write-back.
	entries, err := d.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries[0].ResolvedURL != w.urls[0] {
		t.Errorf("entry ResolvedURL = %q, want %q", entries[0].ResolvedURL, w.urls[0])
	}
}

func TestCacheResolvedURLs_WriteFailureIsSkipped(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/spreadsheets/") {
			fmt.Fprint(w, "ok")
			return
		}
		http.Redirect(w, r, srv.URL+"/spreadsheets/d/TARGET/edit", http.StatusFound)
	}))
	defer srv.Close()

	src := staticSource{
		{Name: "AGL6", Pointer: srv.URL + "/agl6", Row: 2},
		{Name: "AGL7", Pointer: srv.URL + "/agl7", Row: 3},
	}
	d := New(src, noFollowClient(), zerolog.Nop())

	w := &recordingWriter{fail: map[int]error{2: fmt.Errorf("quota exhausted")}}
	written, err := d.CacheResolvedURLs(context.Background(), w)
	if err != nil {
		t.Fatalf("CacheResolvedURLs: %v", err)
	}
	if written != 1 {
		t.Fatalf("written = %d, want 1 (the row whose write succeeded)", written)
	}
	if len(w.rows) != 1 || w.rows[0] != 3 {
		t.Errorf("rows written = %v, want [3]", w.rows)
	}

	entries, _ := d.Entries(context.Background())
	if entries[0].ResolvedURL != "" {
		t.Errorf("failed write-back still updated entry: %q", entries[0].ResolvedURL)
	}
}

func TestSpreadsheetIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://docs.google.com/spreadsheets/d/1GE7PUq-UT6x2rBN/edit#gid=0", "1GE7PUq-UT6x2rBN"},
		{"https://docs.google.com/spreadsheets/d/abc_DEF-123/", "abc_DEF-123"},
		{"https://agroverse.shop/agl10", ""},
		{"not a url at all ::", ""},
	}
	for _, tt := range tests {
		if got := SpreadsheetIDFromURL(tt.url); got != tt.want {
			t.Errorf("SpreadsheetIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
