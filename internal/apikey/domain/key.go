package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix starts every key issued by Create and Rotate.
const KeyPrefix = "hms_live_key_"

const keyIDPrefix = "key_"

// FormatKey builds the plaintext key for keyID. It is shown to the caller once.
func FormatKey(keyID, secret string) string {
	return KeyPrefix + strings.TrimPrefix(keyID, keyIDPrefix) + "_" + secret
}

// KeyIDFromRaw returns the key id embedded in an issued key, or "" when raw
// does not have the issued shape. Bootstrap keys may have any shape.
func KeyIDFromRaw(raw string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), KeyPrefix)
	if !ok {
		return ""
	}
	id, secret, ok := strings.Cut(rest, "_")
	if !ok || id == "" || secret == "" {
		return ""
	}
	return keyIDPrefix + id
}

// HashAPIKey is the lookup hash stored for a plaintext key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
