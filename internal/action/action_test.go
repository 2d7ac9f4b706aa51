package action

import (
	"errors"
	"testing"
)

func TestParse_AllKinds(t *testing.T) {
	tests := []struct {
		payload string
		kind    Kind
		roomID  int64
	}{
		{"role_buyer_1001", KindRoleBuyer, 1001},
		{"role_seller_1001", KindRoleSeller, 1001},
		{"blockchain_bsc_42", KindBlockchainBSC, 42},
		{"coin_usdt_42", KindCoinUSDT, 42},
		{"coin_usdc_42", KindCoinUSDC, 42},
		{"approve_deal_7", KindApproveDeal, 7},
		{"payment_sent_7", KindPaymentSent, 7},
		{"approve_release_7", KindApproveRelease, 7},
		{"decline_release_7", KindDeclineRelease, 7},
		{"close_deal_7", KindCloseDeal, 7},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			a, err := Parse(tt.payload)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.payload, err)
			}
			if a.Kind != tt.kind {
				t.Errorf("Expected kind %q, got %q", tt.kind, a.Kind)
			}
			if a.RoomID != tt.roomID {
				t.Errorf("Expected room id %d, got %d", tt.roomID, a.RoomID)
			}
			if a.Suffix != "" {
				t.Errorf("Expected empty suffix, got %q", a.Suffix)
			}
		})
	}
}

func TestParse_NegativeRoomID(t *testing.T) {
	// Supergroup chat ids are negative
	a, err := Parse("approve_deal_-1002233445566")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if a.RoomID != -1002233445566 {
		t.Errorf("Expected -1002233445566, got %d", a.RoomID)
	}
}

func TestParse_Suffix(t *testing.T) {
	a, err := Parse("approve_release_9_retry")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if a.Kind != KindApproveRelease {
		t.Errorf("Expected approve_release, got %q", a.Kind)
	}
	if a.RoomID != 9 {
		t.Errorf("Expected room id 9, got %d", a.RoomID)
	}
	if a.Suffix != "retry" {
		t.Errorf("Expected suffix 'retry', got %q", a.Suffix)
	}
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := Parse("refund_all_42")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []string{
		"approve_deal_",
		"approve_deal_abc",
		"role_buyer_12x",
	}
	for _, payload := range tests {
		t.Run(payload, func(t *testing.T) {
			_, err := Parse(payload)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Parse(%q): expected ErrMalformed, got %v", payload, err)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	payload := Encode(KindCoinUSDT, -100123)
	if payload != "coin_usdt_-100123" {
		t.Errorf("Expected coin_usdt_-100123, got %q", payload)
	}

	a, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if a.Kind != KindCoinUSDT || a.RoomID != -100123 {
		t.Errorf("Round trip mismatch: %+v", a)
	}
}
