package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// parseAmount accepts plain integers and the 5e9 shorthand.
func parseAmount(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("amount required")
	}
	mantissa, exp, hasExp := strings.Cut(strings.ToLower(trimmed), "e")
	value, ok := new(big.Int).SetString(mantissa, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", raw)
	}
	if hasExp {
		n, err := strconv.ParseUint(exp, 10, 8)
		if err != nil {
			return "", fmt.Errorf("invalid exponent in %q", raw)
		}
		value.Mul(value, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil))
	}
	if value.Sign() < 0 {
		return "", fmt.Errorf("amount must not be negative")
	}
	return value.String(), nil
}

// parseDate accepts unix seconds, YYYY-MM-DD or RFC3339 and returns unix
// seconds.
func parseDate(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("date required")
	}
	if secs, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return secs, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			if ts.Unix() < 0 {
				return 0, fmt.Errorf("date %q predates 1970", raw)
			}
			return uint64(ts.Unix()), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q (want unix seconds, YYYY-MM-DD or RFC3339)", raw)
}

// newAgreementID derives a fresh agreement identifier for a property.
func newAgreementID(propertyID string) string {
	h := blake3.New(32, nil)
	h.Write([]byte("rentchain/agreement"))
	h.Write([]byte(strings.ToLower(strings.TrimPrefix(propertyID, "0x"))))
	nonce := uuid.New()
	h.Write(nonce[:])
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
