// Package signature implements the payload signing scheme for outbound
// deliveries: lowercase hex HMAC-SHA256 of the canonical request body,
// transmitted in the X-Signature header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header is the HTTP header carrying the payload signature.
const Header = "X-Signature"

// Sign computes hex(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for body under secret.
// The comparison is constant-time; receivers can use it to authenticate
// incoming deliveries.
func Verify(secret string, body []byte, sig string) bool {
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
