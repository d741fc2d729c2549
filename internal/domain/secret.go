package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// SecretLength is the default length of generated secrets.
const SecretLength = 8

// secretAlphabet is uppercase letters and digits with the visually
// ambiguous characters O, 0, I and 1 removed.
const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSecret produces a random token of the given length drawn
// uniformly from the secret alphabet using crypto/rand.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		return "", NewValidationError("secret length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(secretAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw random character: %w", err)
		}
		out[i] = secretAlphabet[n.Int64()]
	}
	return string(out), nil
}
