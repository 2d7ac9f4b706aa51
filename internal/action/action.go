// Package action encodes and decodes the inline-button callback payloads
// exchanged with the chat transport.
//
// Every button carries a payload of the form "{kind}_{roomID}" with an
// optional trailing suffix. Payloads are parsed once at the transport
// boundary into a typed Action; the rest of the system never touches the
// raw string again.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Common errors
var (
	ErrMalformed   = errors.New("malformed action payload")
	ErrUnknownKind = errors.New("unknown action kind")
)

// Kind identifies what a pressed button asks for
type Kind string

const (
	KindRoleBuyer      Kind = "role_buyer"
	KindRoleSeller     Kind = "role_seller"
	KindBlockchainBSC  Kind = "blockchain_bsc"
	KindCoinUSDT       Kind = "coin_usdt"
	KindCoinUSDC       Kind = "coin_usdc"
	KindApproveDeal    Kind = "approve_deal"
	KindPaymentSent    Kind = "payment_sent"
	KindApproveRelease Kind = "approve_release"
	KindDeclineRelease Kind = "decline_release"
	KindCloseDeal      Kind = "close_deal"
)

// kinds ordered longest-first so prefix matching never picks a shorter
// kind that happens to prefix a longer one
var kinds = []Kind{
	KindApproveRelease,
	KindDeclineRelease,
	KindBlockchainBSC,
	KindApproveDeal,
	KindPaymentSent,
	KindRoleSeller,
	KindRoleBuyer,
	KindCloseDeal,
	KindCoinUSDT,
	KindCoinUSDC,
}

// Action is a parsed button press bound to a room
type Action struct {
	Kind   Kind
	RoomID int64
	Suffix string // optional trailing segment, rarely used
}

// Parse decodes a raw callback payload into an Action.
// Payload layout is "{kind}_{roomID}" or "{kind}_{roomID}_{suffix}".
func Parse(payload string) (Action, error) {
	for _, k := range kinds {
		prefix := string(k) + "_"
		if !strings.HasPrefix(payload, prefix) {
			continue
		}

		rest := strings.TrimPrefix(payload, prefix)
		if rest == "" {
			return Action{}, fmt.Errorf("%w: %q has no room id", ErrMalformed, payload)
		}

		idPart := rest
		suffix := ""
		if i := strings.IndexByte(rest, '_'); i >= 0 {
			idPart = rest[:i]
			suffix = rest[i+1:]
		}

		roomID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("%w: %q has non-numeric room id", ErrMalformed, payload)
		}

		return Action{Kind: k, RoomID: roomID, Suffix: suffix}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrUnknownKind, payload)
}

// Encode renders an Action back into the wire payload attached to a button
func Encode(kind Kind, roomID int64) string {
	return fmt.Sprintf("%s_%d", kind, roomID)
}
