package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// ComputeHash derives the idempotency hash for a raw entry: a SHA-256 digest
// over the whitespace-stripped concatenation of actor, body and status date.
// Stable across retries of an identical message, distinct for any edit to
// wording, actor or date.
func ComputeHash(actor, body, statusDate string) string {
	stripped := stripWhitespace(actor + body + statusDate)
	sum := sha256.Sum256([]byte(stripped))
	return hex.EncodeToString(sum[:])
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
