// Package directory maintains the registry of managed ledgers: logical names
// mapped to physical-store pointers, with redirect-chain resolution and a
// per-run cache.
package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxRedirectHops bounds indirection-chain following. Beyond this the
// pointer is treated as unresolvable rather than looping forever.
const MaxRedirectHops = 10

// Entry is one (name, pointer) pair from the directory source. ResolvedURL,
// when present, is the pre-resolved physical address recorded alongside the
// pointer so the redirect chain can be skipped entirely. Row locates the
// entry in its source for cache write-backs; zero means unknown.
type Entry struct {
	Name        string
	Pointer     string
	ResolvedURL string
	Row         int
}

// Source lists the directory entries. Served by the shipment-registry sheet
// in production and by fixtures in tests.
type Source interface {
	ListEntries(ctx context.Context) ([]Entry, error)
}

// Directory caches the listing and pointer resolutions for the lifetime of
// one pipeline run. Construct a fresh Directory per run; staleness within a
// run is tolerated by design.
type Directory struct {
	source  Source
	client  *http.Client
	maxHops int
	log     zerolog.Logger

	mu      sync.Mutex
	entries []Entry
	loaded  bool
	cache   map[string]string // original pointer -> final URL
}

// New builds a Directory over source. client may be nil, in which case a
// non-following client with a short timeout is used.
func New(source Source, client *http.Client, log zerolog.Logger) *Directory {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Directory{
		source:  source,
		client:  client,
		maxHops: MaxRedirectHops,
		log:     log,
		cache:   make(map[string]string),
	}
}

// WithMaxHops overrides the redirect-chain hop bound. Values below one keep
// the default.
func (d *Directory) WithMaxHops(n int) *Directory {
	if n > 0 {
		d.maxHops = n
	}
	return d
}

// Entries returns the directory listing, fetched at most once per run.
func (d *Directory) Entries(ctx context.Context) ([]Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return d.entries, nil
	}
	entries, err := d.source.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: list entries: %w", err)
	}
	d.entries = entries
	d.loaded = true
	return entries, nil
}

// ResolvePointer returns the final URL behind pointer, consulting the run
// cache first and otherwise following the indirection chain live, bounded to
// the configured hop limit.
func (d *Directory) ResolvePointer(ctx context.Context, pointer string) (string, error) {
	d.mu.Lock()
	if final, ok := d.cache[pointer]; ok {
		d.mu.Unlock()
		return final, nil
	}
	d.mu.Unlock()

	final, err := d.followRedirects(ctx, pointer)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.cache[pointer] = final
	d.mu.Unlock()
	return final, nil
}

// followRedirects walks the chain one hop at a time so the hop bound is
// enforced exactly.
func (d *Directory) followRedirects(ctx context.Context, start string) (string, error) {
	current := start
	for hop := 0; hop < d.maxHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("directory: bad pointer %q: %w", current, err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("directory: follow %q: %w", current, err)
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode > 399 {
			return current, nil
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return current, nil
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			return "", fmt.Errorf("directory: bad redirect location %q: %w", loc, err)
		}
		d.log.Debug().Str("from", current).Str("to", next.String()).Int("hop", hop+1).Msg("following ledger pointer redirect")
		current = next.String()
	}
	return "", fmt.Errorf("directory: pointer %q exceeded %d redirect hops", start, d.maxHops)
}

// ResolvedURLWriter persists a chased-down pointer URL back into the
// directory source so later runs skip the redirect chain.
type ResolvedURLWriter interface {
	WriteResolvedURL(ctx context.Context, row int, url string) error
}

// CacheResolvedURLs chases every entry whose pointer still needs resolving
// and writes the final URL back through w. Entries with a recorded resolved
// URL, a direct spreadsheet pointer, or no source row are left alone. Returns
// the number of entries written; individual failures are logged and skipped
// so one dead pointer never aborts the pass.
func (d *Directory) CacheResolvedURLs(ctx context.Context, w ResolvedURLWriter) (int, error) {
	entries, err := d.Entries(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for i, entry := range entries {
		if entry.Pointer == "" || entry.ResolvedURL != "" || entry.Row == 0 {
			continue
		}
		if SpreadsheetIDFromURL(entry.Pointer) != "" {
			continue
		}

		final, err := d.ResolvePointer(ctx, entry.Pointer)
		if err != nil {
			d.log.Warn().Err(err).Str("ledger", entry.Name).Msg("pointer did not resolve, leaving cache column empty")
			continue
		}
		if err := w.WriteResolvedURL(ctx, entry.Row, final); err != nil {
			d.log.Warn().Err(err).Str("ledger", entry.Name).Msg("failed to write resolved url back to directory")
			continue
		}

		d.mu.Lock()
		d.entries[i].ResolvedURL = final
		d.mu.Unlock()
		written++
		d.log.Info().Str("ledger", entry.Name).Str("url", final).Msg("resolved url cached")
	}
	return written, nil
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9\-_]+)`)

// SpreadsheetIDFromURL extracts the physical store identifier from a sheet
// URL, or returns "" when the URL does not address a spreadsheet.
func SpreadsheetIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	m := spreadsheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}
