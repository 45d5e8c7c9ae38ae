// Package dedup tracks which device events were already processed on
// prior polls. Consecutive fetch windows overlap, so the store is a traffic
// reduction, not a correctness boundary: a miss after eviction only
// re-emits idempotent treatment records.
package dedup

import (
	"context"
	"time"

	"pumpsync/internal/model"
)

// Store records processed event identities for the archive-overlap window.
type Store interface {
	// Seen reports whether the identity was already processed.
	Seen(ctx context.Context, id model.EventIdentity) (bool, error)
	// MarkSeen records the identity with its source event time.
	MarkSeen(ctx context.Context, id model.EventIdentity, eventTime time.Time) error
	// Sweep drops entries with event time before the cutoff and returns
	// how many were removed.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
