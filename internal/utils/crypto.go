package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const temporarySecretBytes = 8

// GenerateTemporarySecret returns a one-time replacement password: 8 bytes
// from the OS CSPRNG as 16 lowercase hex characters.
func GenerateTemporarySecret() (string, error) {
	buf := make([]byte, temporarySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
