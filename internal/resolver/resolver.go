// Package resolver maps logical ledger references to the physical targets
// that must receive a posting.
package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cacao-collective/bookkeeper/internal/directory"
	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// Matching strategy names, recorded on every resolution for audit.
const (
	StrategyDefault       = "default"
	StrategyExactName     = "exact_name"
	StrategyPointer       = "pointer_contains"
	StrategyNormalized    = "normalized"
	StrategyFamilyNumber  = "family_number"
	StrategyURLIdentifier = "url_identifier"
	StrategyUnresolved    = "unresolved"
)

// familyPattern matches the family-prefixed ledger naming scheme: a known
// family token followed by a number ("AGL 10", "agl-10", "sef1").
var familyPattern = regexp.MustCompile(`(?i)(agl|sef|pp)[\s\-_]*(\d+)`)

// Resolution describes how a reference was (or was not) matched.
type Resolution struct {
	Matched    bool
	Strategy   string
	Reference  string
	Annotation string // original reference, set when routed to default as a fallback
}

// Resolver resolves ledger references against the directory. The default
// target is the safety fallback: an unresolvable reference is routed there
// with an annotation, never dropped.
type Resolver struct {
	dir           *directory.Directory
	defaultTarget domain.LedgerTarget
	managedSheet  string
	log           zerolog.Logger
}

// New builds a Resolver. managedSheet is the sheet-name convention shared by
// managed ledger stores.
func New(dir *directory.Directory, defaultTarget domain.LedgerTarget, managedSheet string, log zerolog.Logger) *Resolver {
	return &Resolver{
		dir:           dir,
		defaultTarget: defaultTarget,
		managedSheet:  managedSheet,
		log:           log,
	}
}

// Resolve maps ref to a concrete target. It never fails outright: any
// reference that cannot be matched, or whose pointer cannot be resolved to a
// physical store, falls back to the default ledger with the original
// reference preserved as an annotation.
func (r *Resolver) Resolve(ctx context.Context, ref domain.LedgerReference) (domain.LedgerTarget, Resolution) {
	if ref.IsDefault() {
		return r.defaultTarget, Resolution{Matched: true, Strategy: StrategyDefault, Reference: ref.Raw}
	}

	entries, err := r.dir.Entries(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("reference", ref.Raw).Msg("directory unavailable, routing to default ledger")
		return r.defaultTarget, r.unresolved(ref)
	}

	// First match wins, in directory listing order. Ties between equally
	// plausible candidates are resolved by that order.
	for _, entry := range entries {
		strategy, ok := matchEntry(ref.Raw, entry)
		if !ok {
			continue
		}
		target, tErr := r.physicalTarget(ctx, entry)
		if tErr != nil {
			r.log.Warn().Err(tErr).
				Str("reference", ref.Raw).
				Str("ledger", entry.Name).
				Str("strategy", strategy).
				Msg("matched ledger has no resolvable store, routing to default ledger")
			return r.defaultTarget, r.unresolved(ref)
		}
		return target, Resolution{Matched: true, Strategy: strategy, Reference: ref.Raw}
	}

	r.log.Warn().Str("reference", ref.Raw).Msg("no ledger matched reference, routing to default ledger")
	return r.defaultTarget, r.unresolved(ref)
}

func (r *Resolver) unresolved(ref domain.LedgerReference) Resolution {
	return Resolution{
		Matched:    false,
		Strategy:   StrategyUnresolved,
		Reference:  ref.Raw,
		Annotation: "unresolved ledger " + ref.Raw,
	}
}

// physicalTarget turns a directory entry into an appendable target: the
// pre-resolved URL when recorded, a direct spreadsheet URL, or the pointer's
// redirect chain as a last resort.
func (r *Resolver) physicalTarget(ctx context.Context, entry directory.Entry) (domain.LedgerTarget, error) {
	candidates := []string{entry.ResolvedURL, entry.Pointer}
	for i, u := range candidates {
		if u == "" {
			continue
		}
		if id := directory.SpreadsheetIDFromURL(u); id != "" {
			return r.managedTarget(entry.Name, id), nil
		}
		// Only the raw pointer is worth chasing through redirects.
		if i == 0 {
			continue
		}
		final, err := r.dir.ResolvePointer(ctx, u)
		if err != nil {
			return domain.LedgerTarget{}, err
		}
		if id := directory.SpreadsheetIDFromURL(final); id != "" {
			return r.managedTarget(entry.Name, id), nil
		}
	}
	return domain.LedgerTarget{}, domain.ErrUnresolved
}

func (r *Resolver) managedTarget(name, spreadsheetID string) domain.LedgerTarget {
	return domain.LedgerTarget{
		Name:          name,
		SpreadsheetID: spreadsheetID,
		Sheet:         r.managedSheet,
		Shape:         domain.ShapeManaged,
	}
}

// matchEntry applies the reference-matching strategies in order against a
// single candidate and reports the first that holds.
func matchEntry(reference string, entry directory.Entry) (string, bool) {
	ref := strings.ToLower(strings.TrimSpace(reference))
	name := strings.ToLower(strings.TrimSpace(entry.Name))
	pointer := strings.ToLower(entry.Pointer)

	// 2: exact, case-insensitive name match.
	if ref == name {
		return StrategyExactName, true
	}

	// 3: reference appears inside the physical-location pointer.
	if ref != "" && strings.Contains(pointer, ref) {
		return StrategyPointer, true
	}

	// 4: match after stripping whitespace, dashes and underscores.
	if squash(ref) != "" && squash(ref) == squash(name) {
		return StrategyNormalized, true
	}

	// 5: family + number scheme on both sides. URL-shaped references are
	// left to strategy 6, which extracts the token from the path instead
	// of matching digits anywhere in the URL.
	if refFam, refNum, ok := familyNumber(ref); ok && !strings.Contains(ref, "/") {
		if nameFam, nameNum, ok2 := familyNumber(name); ok2 && refFam == nameFam && refNum == nameNum {
			return StrategyFamilyNumber, true
		}
	}

	// 6: short identifier token extracted from a URL-shaped reference,
	// compared against the token derived from the candidate name.
	if tok := urlIdentifier(ref); tok != "" {
		if nameFam, nameNum, ok := familyNumber(name); ok && tok == nameFam+nameNum {
			return StrategyURLIdentifier, true
		}
	}

	return "", false
}

var squashPattern = regexp.MustCompile(`[\s\-_]`)

func squash(s string) string {
	return squashPattern.ReplaceAllString(s, "")
}

func familyNumber(s string) (family, number string, ok bool) {
	m := familyPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimLeft(m[2], "0"), true
}

var urlIdentifierPattern = regexp.MustCompile(`(?i)/((?:agl|sef|pp)\d+)(?:[/?#]|$)`)

// urlIdentifier pulls a short ledger token out of a URL-shaped reference,
// e.g. "https://agroverse.shop/agl10" -> "agl10".
func urlIdentifier(s string) string {
	m := urlIdentifierPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	tok := strings.ToLower(m[1])
	fam := familyPattern.FindStringSubmatch(tok)
	if fam == nil {
		return ""
	}
	return strings.ToLower(fam[1]) + strings.TrimLeft(fam[2], "0")
}
