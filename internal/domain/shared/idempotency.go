package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which events a handler has already seen.
// Outbox delivery is at-least-once, so handlers with side effects consult it.
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl. It returns false when the ID was
	// already recorded and has not expired.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Forget removes eventID so a failed delivery can be retried
	Forget(ctx context.Context, eventID string) error

	Close() error
}
