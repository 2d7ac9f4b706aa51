// Package verifier checks deposit transactions against the chain.
//
// Flow:
//  1. The buyer pastes a transaction hash or a block-explorer link.
//  2. The hash is normalized and validated locally before any network
//     call.
//  3. The transaction is looked up on the ledger and must pay the
//     escrow address that was issued for the deal.
//
// A configured bypass hash short-circuits the lookup for staging
// drills; config refuses to carry one in production.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/p2pmart/dealroom/internal/token"
)

// Common errors
var (
	ErrHashTooShort   = errors.New("transaction hash too short")
	ErrHashNotHex     = errors.New("transaction hash is not hexadecimal")
	ErrTxNotFound     = errors.New("transaction not found on chain")
	ErrWrongRecipient = errors.New("transaction does not pay the escrow address")
	ErrZeroValue      = errors.New("transaction transfers no value")
)

// Tx is the slice of an on-chain transaction the verifier cares about
type Tx struct {
	Hash  string
	To    string
	Value *big.Int // smallest units
}

// LedgerLookup fetches a transaction by hash
type LedgerLookup interface {
	Transaction(ctx context.Context, hash string) (*Tx, error)
}

// Deposit is a verified escrow payment
type Deposit struct {
	Hash     string
	Amount   float64
	Bypassed bool
}

// NormalizeHash extracts a transaction hash from raw input, which may
// be a bare hash (with or without 0x) or a block-explorer link.
func NormalizeHash(input string) string {
	s := strings.TrimSpace(input)

	// Explorer links carry the hash after "tx/", possibly followed by
	// query parameters
	if i := strings.Index(s, "tx/"); i >= 0 {
		s = s[i+len("tx/"):]
		if j := strings.IndexByte(s, '?'); j >= 0 {
			s = s[:j]
		}
	}

	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// validateHash runs the local checks that gate a ledger lookup
func validateHash(hash string) error {
	hexPart := strings.TrimPrefix(hash, "0x")
	if len(hexPart) < 32 {
		return fmt.Errorf("%w: %d chars", ErrHashTooShort, len(hexPart))
	}
	for _, c := range hexPart {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return ErrHashNotHex
		}
	}
	return nil
}

// Verifier validates deposits for the deal flow
type Verifier struct {
	lookup     LedgerLookup
	bypassHash string
}

// New creates a Verifier backed by a ledger lookup
func New(lookup LedgerLookup) *Verifier {
	return &Verifier{lookup: lookup}
}

// WithBypassHash accepts one hash without a ledger lookup. Empty
// disables the bypass.
func (v *Verifier) WithBypassHash(hash string) *Verifier {
	v.bypassHash = hash
	return v
}

// Verify normalizes raw input and confirms the transaction pays
// escrowAddr. The bypass hash is matched before local validation so it
// does not need to be well formed.
func (v *Verifier) Verify(ctx context.Context, raw, escrowAddr string, expectedAmount float64) (*Deposit, error) {
	hash := NormalizeHash(raw)

	if v.bypassHash != "" && strings.EqualFold(hash, NormalizeHash(v.bypassHash)) {
		return &Deposit{Hash: hash, Amount: expectedAmount, Bypassed: true}, nil
	}

	if err := validateHash(hash); err != nil {
		return nil, err
	}

	tx, err := v.lookup.Transaction(ctx, hash)
	if err != nil {
		return nil, err
	}

	if tx.To == "" || !strings.EqualFold(tx.To, escrowAddr) {
		return nil, fmt.Errorf("%w: paid %s", ErrWrongRecipient, tx.To)
	}
	if tx.Value == nil || tx.Value.Sign() <= 0 {
		return nil, ErrZeroValue
	}

	return &Deposit{Hash: hash, Amount: token.ToFloat(tx.Value)}, nil
}
