package cache

import (
	"context"
	"time"
)

// IdempotencyStore records which run IDs have already been executed.
// Batch upserts and repair runs check it before mutating anything, so a
// replayed request becomes a no-op instead of a double booking.
type IdempotencyStore interface {
	// MarkProcessed marks a run ID as processed with a TTL. Returns true
	// if the ID was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	// IsProcessed checks whether a run ID has already been processed.
	IsProcessed(ctx context.Context, runID string) (bool, error)
	Close() error
}
