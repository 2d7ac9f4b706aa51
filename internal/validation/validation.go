// Package validation provides input validation for participant-supplied text.
package validation

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Payment methods accepted for the fiat leg of a deal
var paymentMethods = map[string]bool{
	"UPI":      true,
	"CDM":      true,
	"CCW":      true,
	"CASH":     true,
	"ATM":      true,
	"CARDLESS": true,
	"IMPS":     true,
	"RTGS":     true,
	"NEFT":     true,
}

// IsValidAddress checks that a string is a 0x-prefixed 40-hex-char
// address, the only shape accepted for payout addresses.
func IsValidAddress(addr string) bool {
	return len(addr) == 42 && strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr)
}

// SanitizeAddress normalizes a participant-pasted address
func SanitizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && len(addr) == 40 && common.IsHexAddress(addr) {
		addr = "0x" + addr
	}
	return addr
}

// NormalizePaymentMethod uppercases a payment method and reports
// whether it is one of the accepted set.
func NormalizePaymentMethod(s string) (string, bool) {
	method := strings.ToUpper(strings.TrimSpace(s))
	return method, paymentMethods[method]
}

// NormalizeUsername strips a leading @ and surrounding whitespace
func NormalizeUsername(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}
