package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// apiKeyBytes is the entropy in one generated key (hex doubles it on the wire).
const apiKeyBytes = 24

// GenerateAPIKey mints a new key. The raw value is shown to the caller
// exactly once; only hash and prefix are stored.
func GenerateAPIKey() (raw, hash, prefix string, err error) {
	buf := make([]byte, apiKeyBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("failed to generate api key: %w", err)
	}
	raw = "ok_" + hex.EncodeToString(buf)
	return raw, HashAPIKey(raw), raw[:8], nil
}

// HashAPIKey derives the stored lookup hash for a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
