// Package code generates human-shareable referral codes.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// ExistsFunc reports whether a candidate code is already taken. It is queried
// fresh on every attempt: codes can be issued concurrently by ordinary
// booking flows, so "taken" results must never be cached.
type ExistsFunc func(code string) (bool, error)

// Generate derives a code from the customer's first name (uppercased, letters
// and digits only) plus a 4-digit random suffix, retrying with a new suffix
// until the code is unused. There is no retry cap; the suffix space is large
// relative to any realistic customer count.
func Generate(customerName string, exists ExistsFunc) (string, error) {
	base := baseToken(customerName)

	for {
		suffix, err := randomSuffix()
		if err != nil {
			return "", err
		}
		candidate := base + suffix

		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

// baseToken extracts the first name, uppercases it, and strips anything that
// is not a letter or digit. Empty or fully-stripped names fall back to "REF".
func baseToken(customerName string) string {
	first := customerName
	if i := strings.IndexByte(strings.TrimSpace(customerName), ' '); i > 0 {
		first = strings.TrimSpace(customerName)[:i]
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(first)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "REF"
	}
	return b.String()
}

// randomSuffix returns 4 cryptographically random digits ("0000"–"9999").
func randomSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate suffix: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
