package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature_ValidAndInvalid(t *testing.T) {
	secret := []byte("shared-secret")
	body := []byte(`{"command":"/status"}`)

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	require.True(t, VerifySignature(secret, body, valid))
	require.False(t, VerifySignature(secret, body, "deadbeef"))
	require.False(t, VerifySignature(secret, []byte("tampered"), valid))
	require.False(t, VerifySignature(secret, body, "not-hex!!"))
}
