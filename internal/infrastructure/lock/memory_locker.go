package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared"
)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// MemoryInvoiceLocker is an in-process InvoiceLocker for single-instance
// deployments and tests.
type MemoryInvoiceLocker struct {
	opts  Options
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

// NewMemoryInvoiceLocker creates an in-process locker
func NewMemoryInvoiceLocker(opts Options) *MemoryInvoiceLocker {
	return &MemoryInvoiceLocker{
		opts:  opts.withDefaults(),
		locks: make(map[string]heldLock),
		now:   time.Now,
	}
}

// Acquire takes the lock for the invoice, waiting up to WaitTimeout
func (l *MemoryInvoiceLocker) Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (ReleaseFunc, error) {
	key := l.opts.key(tenantID, invoiceID)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := retry(ctx, l.opts, func() (bool, error) {
		return l.tryLock(key, token), nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrResourceBusy
	}

	return func(context.Context) error {
		l.unlock(key, token)
		return nil
	}, nil
}

func (l *MemoryInvoiceLocker) tryLock(key, token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, exists := l.locks[key]; exists && now.Before(held.expiresAt) {
		return false
	}
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(l.opts.TTL)}
	return true
}

// unlock only removes the entry if it still belongs to token, so a holder
// whose lock expired cannot release the next holder's lock.
func (l *MemoryInvoiceLocker) unlock(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, exists := l.locks[key]; exists && held.token == token {
		delete(l.locks, key)
	}
}

// held returns the number of unexpired locks
func (l *MemoryInvoiceLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, held := range l.locks {
		if now.Before(held.expiresAt) {
			n++
		}
	}
	return n
}

var _ InvoiceLocker = (*MemoryInvoiceLocker)(nil)
