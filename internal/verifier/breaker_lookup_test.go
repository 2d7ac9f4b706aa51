package verifier

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

type flakyLookup struct {
	err   error
	calls int
}

func (f *flakyLookup) Transaction(ctx context.Context, hash string) (*Tx, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Tx{Hash: hash, To: "0xabc", Value: big.NewInt(1)}, nil
}

func TestBreakerLookup_OpensAfterFailures(t *testing.T) {
	inner := &flakyLookup{err: errors.New("connection refused")}
	lookup := NewBreakerLookup(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := lookup.Transaction(ctx, "0xdead"); err == nil {
			t.Fatal("expected a transport error")
		}
	}

	// Breaker is open: the inner lookup is no longer called
	before := inner.calls
	_, err := lookup.Transaction(ctx, "0xdead")
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("err = %v, want ErrLedgerUnavailable", err)
	}
	if inner.calls != before {
		t.Fatal("inner lookup called while the breaker was open")
	}
}

func TestBreakerLookup_NotFoundIsNotAFailure(t *testing.T) {
	inner := &flakyLookup{err: ErrTxNotFound}
	lookup := NewBreakerLookup(inner)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := lookup.Transaction(ctx, "0xdead"); !errors.Is(err, ErrTxNotFound) {
			t.Fatalf("err = %v, want ErrTxNotFound", err)
		}
	}
	if inner.calls != 10 {
		t.Fatalf("inner called %d times, want 10", inner.calls)
	}
}
