package domain

import (
	"errors"
	"fmt"
)

// The pipeline error taxonomy. Only PostError is fatal for an event; Skip
// and Unresolved are expected outcomes, and SideEffectError never reverts a
// durable ledger write.

// SkipError marks a raw entry that produced no event: unknown message shape,
// stale or malformed date, or a duplicate idempotency hash.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skip: " + e.Reason }

// Skipf builds a SkipError with a formatted reason.
func Skipf(format string, args ...interface{}) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err is a SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// ErrUnresolved marks a ledger reference that matched no known ledger.
// Unresolved events are still posted, to the default ledger, with an
// annotation carrying the original reference.
var ErrUnresolved = errors.New("ledger reference unresolved")

// PostError wraps a failure to append rows to a resolved target. The source
// row is marked ERROR and is not retried automatically.
type PostError struct {
	Target LedgerTarget
	Err    error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("post to %s (%s): %v", e.Target.Name, e.Target.SpreadsheetID, e.Err)
}

func (e *PostError) Unwrap() error { return e.Err }

// SideEffectError wraps a failed post-commit action. Logged and surfaced for
// operator visibility, never rolled back.
type SideEffectError struct {
	Effect string
	Err    error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("side effect %s: %v", e.Effect, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }
