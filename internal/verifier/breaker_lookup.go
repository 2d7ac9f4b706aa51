package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/p2pmart/dealroom/internal/circuitbreaker"
)

// ErrLedgerUnavailable is returned while the breaker is open
var ErrLedgerUnavailable = errors.New("ledger lookup temporarily unavailable")

const breakerKey = "scan_api"

// BreakerLookup wraps a LedgerLookup with a circuit breaker so a down
// explorer API sheds load instead of stalling every deposit check.
// Rejections like ErrTxNotFound are answers, not failures, and do not
// trip the breaker.
type BreakerLookup struct {
	inner   LedgerLookup
	breaker *circuitbreaker.Breaker
}

// NewBreakerLookup wraps lookup, opening after 5 consecutive transport
// failures for 30 seconds
func NewBreakerLookup(lookup LedgerLookup) *BreakerLookup {
	return &BreakerLookup{
		inner:   lookup,
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// Transaction delegates to the wrapped lookup while the breaker allows
func (b *BreakerLookup) Transaction(ctx context.Context, hash string) (*Tx, error) {
	if !b.breaker.Allow(breakerKey) {
		return nil, ErrLedgerUnavailable
	}

	tx, err := b.inner.Transaction(ctx, hash)
	switch {
	case err == nil, errors.Is(err, ErrTxNotFound):
		b.breaker.RecordSuccess(breakerKey)
	default:
		b.breaker.RecordFailure(breakerKey)
	}
	return tx, err
}
