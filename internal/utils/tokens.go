package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SecureToken returns n random bytes, hex encoded. Used for the ephemeral
// cookie-session secret when none is configured.
func SecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
