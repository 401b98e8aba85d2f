package lock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopdesk/backend/internal/domain/shared"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInvoiceLocker implements InvoiceLocker with SET NX PX so that every
// instance of the service shares the same per-invoice lock.
type RedisInvoiceLocker struct {
	client redis.UniversalClient
	opts   Options
}

// NewRedisInvoiceLocker creates a locker on an existing client
func NewRedisInvoiceLocker(client redis.UniversalClient, opts Options) *RedisInvoiceLocker {
	return &RedisInvoiceLocker{client: client, opts: opts.withDefaults()}
}

// Acquire takes the lock for the invoice, waiting up to WaitTimeout
func (l *RedisInvoiceLocker) Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (ReleaseFunc, error) {
	key := l.opts.key(tenantID, invoiceID)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := retry(ctx, l.opts, func() (bool, error) {
		set, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire invoice lock: %w", err)
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrResourceBusy
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release invoice lock: %w", err)
		}
		return nil
	}, nil
}

var _ InvoiceLocker = (*RedisInvoiceLocker)(nil)
