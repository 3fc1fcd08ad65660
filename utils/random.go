package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinSecretBytes is the smallest entropy accepted for a ticket secret.
const MinSecretBytes = 16

// GenerateSecret returns n bytes from the OS CSPRNG encoded as unpadded
// base64url, so the value is safe in URLs and QR payloads.
func GenerateSecret(n int) (string, error) {
	if n < MinSecretBytes {
		return "", fmt.Errorf("secret needs at least %d bytes, got %d", MinSecretBytes, n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
