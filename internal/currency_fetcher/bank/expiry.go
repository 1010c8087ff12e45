package bank

import (
	"context"
	"github.com/pkg/errors"
	"time"
)

// ExpireRates reloads the rates once the TTL has elapsed. Without a TTL the
// rates never expire. Cache writes during the reload are best effort.
func (b *Bank) ExpireRates(ctx context.Context) error {
	const op = "bank.ExpireRates"

	if !b.expired() {
		return nil
	}

	b.log.Debug("rates expired", "expired_at", b.expiresAt, "force_refresh", b.forceRefresh)

	var err error
	if b.forceRefresh {
		err = b.refresh(ctx, true)
	} else {
		err = b.UpdateRates(ctx)
	}
	if err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

func (b *Bank) expired() bool {
	if b.ttl <= 0 {
		return false
	}
	return b.now().After(b.expiresAt)
}

func (b *Bank) resetExpiry() {
	if b.ttl <= 0 {
		b.expiresAt = time.Time{}
		return
	}
	b.expiresAt = b.reference().Add(b.ttl)
}

// reference is the timestamp of the last applied document, or now when there
// is none.
func (b *Bank) reference() time.Time {
	if b.doc != nil && b.doc.Timestamp > 0 {
		return b.doc.Time()
	}
	return b.now()
}

func (b *Bank) TTL() time.Duration {
	return b.ttl
}

// SetTTL replaces the TTL and starts a new expiry window. A zero TTL disables
// expiry.
func (b *Bank) SetTTL(ttl time.Duration) {
	b.ttl = ttl
	b.resetExpiry()
}

// RatesExpiration is zero when no TTL is set.
func (b *Bank) RatesExpiration() time.Time {
	return b.expiresAt
}
