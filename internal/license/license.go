package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Normalize is the single normalization step applied to emails before any
// derivation, lookup, or verification. Every caller must route emails through
// here so the derived key and the stored key can never diverge.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Derive computes the license key for an email: HMAC-SHA256 over the UTF-8
// bytes of the normalized email, encoded as URL-safe base64 with padding
// stripped. Same email and secret always produce the same key.
func Derive(secret []byte, email string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(Normalize(email)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented key against the derived key for the email in
// constant time. Direct string equality would leak key material through
// timing, so it is never used for this comparison.
func Verify(secret []byte, email, presented string) bool {
	expected := Derive(secret, email)
	return hmac.Equal([]byte(expected), []byte(presented))
}
