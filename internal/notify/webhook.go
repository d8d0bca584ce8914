package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks an HMAC-SHA256 signature over body using
// secret, comparing in constant time. There is no HMAC library in the
// example pack, so this one piece is deliberately stdlib
// (crypto/hmac) — see DESIGN.md.
func VerifySignature(secret []byte, body []byte, signatureHex string) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, given)
}
