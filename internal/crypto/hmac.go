package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Sign returns HMAC-SHA256(key, data).
func Sign(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// Verify reports whether sig is the HMAC-SHA256 of data under key.
func Verify(key, data, sig []byte) bool {
	return hmac.Equal(Sign(key, data), sig)
}
