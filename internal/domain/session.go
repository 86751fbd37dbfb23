package domain

import (
	"fmt"
	"time"
)

// DefaultTokenMargin is how long before expiry a master token stops being
// reused, so a long operation never starts on a token about to lapse.
const DefaultTokenMargin = 10 * time.Hour

// SessionKeys are the symmetric keys bound to one MasterToken.
type SessionKeys struct {
	Encryption []byte
	Signing    []byte
}

// Session is the result of a negotiation (or a cache hit): a master token and
// the keys negotiated with it. A Session is a value; renegotiation produces a
// new one instead of mutating an existing one.
type Session struct {
	Identity    string
	MasterToken MasterToken
	Token       TokenData
	Keys        SessionKeys
}

// NewSession pairs a master token with its keys, decoding the token data.
func NewSession(identity string, token MasterToken, keys SessionKeys) (Session, error) {
	td, err := token.Decode()
	if err != nil {
		return Session{}, err
	}
	if len(keys.Encryption) == 0 || len(keys.Signing) == 0 {
		return Session{}, fmt.Errorf("session: incomplete key set")
	}
	return Session{
		Identity:    identity,
		MasterToken: token,
		Token:       td,
		Keys: SessionKeys{
			Encryption: append([]byte(nil), keys.Encryption...),
			Signing:    append([]byte(nil), keys.Signing...),
		},
	}, nil
}

// KeyID names the key set a message was encrypted under: "<sender>_<sequence>".
func (s Session) KeyID() string {
	return fmt.Sprintf("%s_%d", s.Identity, s.Token.SequenceNumber)
}

// ExpiresAt returns the master token's expiration.
func (s Session) ExpiresAt() time.Time { return s.Token.ExpiresAt() }

// ValidAt reports whether at least margin remains before the token expires.
func (s Session) ValidAt(now time.Time, margin time.Duration) bool {
	return s.ExpiresAt().Sub(now) >= margin
}
