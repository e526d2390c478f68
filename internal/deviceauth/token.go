package deviceauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a device bearer token (256-bit).
const tokenBytes = 32

// NewToken generates an opaque device bearer token: 32 random bytes,
// URL-safe base64 without padding. The raw token is returned to the device
// exactly once; only its hash is stored.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating device token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken computes the at-rest hash of a device token.
//
// With a pepper configured the hash is HMAC-SHA256(pepper, token), so a
// leaked database alone is not enough to forge lookups. Without a pepper it
// degrades to plain SHA-256, which still avoids storing tokens in the clear
// but offers no defence against an attacker who can hash candidate tokens
// themselves. Startup logs a warning when the pepper is absent.
func HashToken(token, pepper string) string {
	if pepper != "" {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(token)) //nolint:errcheck // hash writes never fail
		return hex.EncodeToString(mac.Sum(nil))
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
