package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
)

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// DecodeB64 decodes standard base64.
func DecodeB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// DecodeKeyURL decodes a base64url value whose padding may have been
// stripped, as JWK "k" members are.
func DecodeKeyURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	case 1:
		return nil, errors.New("crypto: invalid base64url length")
	}
	return base64.URLEncoding.DecodeString(s)
}

// EncodeKeyURL is the inverse of DecodeKeyURL (unpadded base64url).
func EncodeKeyURL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
