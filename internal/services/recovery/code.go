// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random zero-padded six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// HashCode returns the SHA256 hex digest stored in place of a code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// codeMatches compares a submitted code with a stored digest.
func codeMatches(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(storedHash)) == 1
}
