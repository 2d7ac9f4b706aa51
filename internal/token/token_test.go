package token

import (
	"math"
	"math/big"
	"testing"
)

func TestParse_ValidAmounts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"one token", "1.00", 1_000_000},
		{"fifty cents", "0.50", 500_000},
		{"no frac", "500", 500_000_000},
		{"smallest unit", "0.000001", 1},
		{"truncates beyond six", "1.1234567890", 1_123_456},
		{"leading zeros", "007.50", 7_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if !ok {
				t.Fatalf("Parse(%q) returned ok=false", tt.input)
			}
			if got.Int64() != tt.expected {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got.Int64(), tt.expected)
			}
		})
	}
}

func TestParse_InvalidInputs(t *testing.T) {
	for _, input := range []string{"-1.00", "abc", "1.2.3", "12abc"} {
		t.Run(input, func(t *testing.T) {
			if _, ok := Parse(input); ok {
				t.Errorf("Parse(%q) should return ok=false", input)
			}
		})
	}
}

func TestParse_EmptyString(t *testing.T) {
	got, ok := Parse("")
	if !ok || got.Sign() != 0 {
		t.Errorf("Parse(\"\") = %v ok=%v, want 0 true", got, ok)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0.000000"},
		{1, "0.000001"},
		{1_500_000, "1.500000"},
		{999_999_999_999, "999999.999999"},
		{-1_500_000, "-1.500000"},
	}
	for _, tt := range tests {
		if got := Format(big.NewInt(tt.input)); got != tt.expected {
			t.Errorf("Format(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	if got := Format(nil); got != "0.000000" {
		t.Errorf("Format(nil) = %q, want \"0.000000\"", got)
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		input    int64
		expected float64
	}{
		{0, 0},
		{1_000_000, 1},
		{500_123_456, 500.123456},
	}
	for _, tt := range tests {
		got := ToFloat(big.NewInt(tt.input))
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("ToFloat(%d) = %v, want %v", tt.input, got, tt.expected)
		}
	}

	if got := ToFloat(nil); got != 0 {
		t.Errorf("ToFloat(nil) = %v, want 0", got)
	}
}

func TestRoundTrip_Canonical(t *testing.T) {
	for _, s := range []string{"0.000001", "1.500000", "100.123456"} {
		parsed, ok := Parse(s)
		if !ok {
			t.Fatalf("Parse(%q) returned ok=false", s)
		}
		if got := Format(parsed); got != s {
			t.Errorf("Format(Parse(%q)) = %q", s, got)
		}
	}
}
