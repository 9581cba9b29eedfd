package shared

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a processed event id is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers processed event ids so that at-least-once
// outbox delivery does not apply an event twice in a consumer.
type IdempotencyStore interface {
	// MarkProcessed returns true if the id was newly marked, false if it was
	// already present.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Unmark drops a mark so a failed delivery can be retried
	Unmark(ctx context.Context, eventID string) error
	Close() error
}
