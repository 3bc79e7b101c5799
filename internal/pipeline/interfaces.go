package pipeline

import (
	"context"
	"time"

	"github.com/cacao-collective/bookkeeper/internal/domain"
)

// IntakeLog is the append-only chat log the pipeline consumes. Rows are
// addressed by index; only the hash and status columns are ever written.
type IntakeLog interface {
	// Row point-reads one entry.
	Row(ctx context.Context, index int) (domain.RawLogEntry, error)

	// ListPending returns NEW rows with a status date at or after since.
	// A zero since means no window.
	ListPending(ctx context.Context, since time.Time) ([]domain.RawLogEntry, error)

	// ProcessedHashes returns the idempotency hashes of every PROCESSED
	// row. Consulted once at startup to rebuild the dedup gate.
	ProcessedHashes(ctx context.Context) ([]string, error)

	// SetHash writes the idempotency hash. Called exactly once per row.
	SetHash(ctx context.Context, index int, hash string) error

	// MarkProcessed records terminal success with the posted row refs,
	// stored as literal text.
	MarkProcessed(ctx context.Context, index int, refs []domain.RowRef) error

	// MarkError records terminal failure with a short reason and no
	// completion date.
	MarkError(ctx context.Context, index int, reason string) error
}
