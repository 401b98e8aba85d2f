package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client-supplied request keys so that a retried
// write is not applied twice.
type IdempotencyStore interface {
	// MarkProcessed claims the key for ttl.
	// Returns true if the key was newly claimed, false if it is already held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget releases a claim so the same key can be retried
	Forget(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
