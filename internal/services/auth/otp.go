// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"regexp"
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

var otpRange = big.NewInt(900000)

// NewCode returns a random 6-digit numeric code in [100000, 999999].
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ValidCodeFormat reports whether s is exactly six digits.
func ValidCodeFormat(s string) bool {
	return otpPattern.MatchString(s)
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
