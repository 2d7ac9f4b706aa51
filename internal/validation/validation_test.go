package validation

import "testing"

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name  string
		addr  string
		valid bool
	}{
		{"valid mixed case", "0xDA4c2a5B876b0c7521e1c752690D8705080000fE", true},
		{"valid lowercase", "0xda4c2a5b876b0c7521e1c752690d8705080000fe", true},
		{"missing prefix", "DA4c2a5B876b0c7521e1c752690D8705080000fE", false},
		{"too short", "0xDA4c2a5B876b0c7521e1c752690D8705080000f", false},
		{"too long", "0xDA4c2a5B876b0c7521e1c752690D8705080000fEaa", false},
		{"non-hex chars", "0xZZ4c2a5B876b0c7521e1c752690D8705080000fE", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAddress(tt.addr); got != tt.valid {
				t.Errorf("IsValidAddress(%q) = %v, want %v", tt.addr, got, tt.valid)
			}
		})
	}
}

func TestSanitizeAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  0xDA4c2a5B876b0c7521e1c752690D8705080000fE  ", "0xDA4c2a5B876b0c7521e1c752690D8705080000fE"},
		{"DA4c2a5B876b0c7521e1c752690D8705080000fE", "0xDA4c2a5B876b0c7521e1c752690D8705080000fE"},
		{"not an address", "not an address"},
	}

	for _, tt := range tests {
		if got := SanitizeAddress(tt.input); got != tt.expected {
			t.Errorf("SanitizeAddress(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizePaymentMethod(t *testing.T) {
	accepted := []string{"upi", "UPI", " Upi ", "cdm", "ccw", "cash", "atm", "cardless", "imps", "rtgs", "neft"}
	for _, input := range accepted {
		method, ok := NormalizePaymentMethod(input)
		if !ok {
			t.Errorf("NormalizePaymentMethod(%q) rejected", input)
			continue
		}
		for _, c := range method {
			if c >= 'a' && c <= 'z' {
				t.Errorf("NormalizePaymentMethod(%q) = %q, expected uppercase", input, method)
				break
			}
		}
	}

	if _, ok := NormalizePaymentMethod("paypal"); ok {
		t.Error("Expected paypal to be rejected")
	}
	if _, ok := NormalizePaymentMethod(""); ok {
		t.Error("Expected empty method to be rejected")
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@alice", "alice"},
		{" @alice ", "alice"},
		{"alice", "alice"},
	}
	for _, tt := range tests {
		if got := NormalizeUsername(tt.input); got != tt.expected {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
