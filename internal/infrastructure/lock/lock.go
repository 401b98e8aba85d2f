// Package lock serializes read-modify-write cycles on a single invoice.
//
// Holding the lock is an optimization that turns most lost races into a short
// wait; correctness still rests on the version check in SaveWithLock.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReleaseFunc releases a held lock. Releasing an expired lock is not an error.
type ReleaseFunc func(ctx context.Context) error

// InvoiceLocker grants exclusive access to one invoice of one tenant.
// Acquire returns shared.ErrResourceBusy when the lock is still held by
// someone else after the configured wait.
type InvoiceLocker interface {
	Acquire(ctx context.Context, tenantID, invoiceID uuid.UUID) (ReleaseFunc, error)
}

// Options tunes lock behavior
type Options struct {
	TTL           time.Duration // lock expiry, protects against crashed holders
	WaitTimeout   time.Duration // how long Acquire retries before giving up
	RetryInterval time.Duration
	KeyPrefix     string
}

// DefaultOptions returns options suitable for request-scoped invoice writes
func DefaultOptions() Options {
	return Options{
		TTL:           10 * time.Second,
		WaitTimeout:   2 * time.Second,
		RetryInterval: 25 * time.Millisecond,
		KeyPrefix:     "shopdesk:invoice-lock:",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TTL <= 0 {
		o.TTL = d.TTL
	}
	if o.WaitTimeout < 0 {
		o.WaitTimeout = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = d.RetryInterval
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = d.KeyPrefix
	}
	return o
}

func (o Options) key(tenantID, invoiceID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", o.KeyPrefix, tenantID, invoiceID)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// retry calls try until it reports acquired, the wait budget is spent or ctx
// is done.
func retry(ctx context.Context, opts Options, try func() (bool, error)) (bool, error) {
	deadline := time.Now().Add(opts.WaitTimeout)
	for {
		ok, err := try()
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}

		timer := time.NewTimer(opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}
