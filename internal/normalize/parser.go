package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// The structured message dialects: a bracketed event-kind header on the first
// non-empty line, followed by "- Field: value" lines.

var headerKinds = map[string]domain.EventKind{
	"[SALES EVENT]":        domain.KindSale,
	"[SALE]":               domain.KindSale,
	"[INVENTORY MOVEMENT]": domain.KindMovement,
	"[MOVEMENT]":           domain.KindMovement,
	"[EXPENSE]":            domain.KindExpense,
	"[EXPENSE EVENT]":      domain.KindExpense,
	"[CAPITAL INJECTION]":  domain.KindCapitalInjection,
}

// embeddedLedgerPattern matches an item-embedded ledger shortcut, e.g.
// "[AGL6] Reais" -> shortcut "AGL6", item "Reais".
var embeddedLedgerPattern = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*(.+)$`)

// parseStructured attempts the structured dialects. It returns the detected
// kind and the field map, or ok=false when the body matches no known shape.
func parseStructured(body string) (domain.EventKind, map[string]string, bool) {
	lines := strings.Split(body, "\n")

	kind := domain.EventKind("")
	found := false
	fields := make(map[string]string)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !found {
			k, ok := headerKinds[strings.ToUpper(line)]
			if !ok {
				return "", nil, false
			}
			kind = k
			found = true
			continue
		}
		if !strings.HasPrefix(line, "-") {
			continue
		}
		name, value, ok := strings.Cut(strings.TrimLeft(line, "- "), ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}

	if !found {
		return "", nil, false
	}
	return kind, fields, true
}

// field returns the first non-empty value among the given (lower-case) keys.
func field(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

// parseAmount accepts plain decimals plus the thousands separators and
// currency prefixes members habitually type ("R$ 1,500.50", "1,500").
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "R$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// splitEmbeddedLedger strips a bracketed ledger shortcut off an item string.
// The shortcut is preserved only as provenance on the reference.
func splitEmbeddedLedger(item string) (ref string, stripped string) {
	m := embeddedLedgerPattern.FindStringSubmatch(item)
	if m == nil {
		return "", item
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}
