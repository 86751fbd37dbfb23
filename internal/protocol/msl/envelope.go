package msl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

// envelopeSHA256 is the fixed sha256 member every envelope carries.
const envelopeSHA256 = "AA=="

// VerifyMode selects whether response signatures gate decryption.
type VerifyMode int

const (
	// VerifyStrict rejects a chunk whose signature does not match before
	// decrypting it.
	VerifyStrict VerifyMode = iota
	// VerifyNone decrypts without checking signatures.
	VerifyNone
)

func (m VerifyMode) String() string {
	if m == VerifyNone {
		return "none"
	}
	return "strict"
}

// ParseVerifyMode maps "strict" (or "") and "none" to a VerifyMode.
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return VerifyStrict, nil
	case "none", "off":
		return VerifyNone, nil
	}
	return VerifyStrict, fmt.Errorf("msl: unknown verify mode %q", s)
}

// Seal encrypts plaintext under the session keys and returns the serialized
// envelope plus its signature. The signature covers the exact envelope bytes
// that travel base64-wrapped on the wire.
func Seal(sess domain.Session, plaintext []byte, r io.Reader) (env, sig []byte, err error) {
	iv, ct, err := crypto.EncryptCBC(sess.Keys.Encryption, plaintext, r)
	if err != nil {
		return nil, nil, err
	}
	env, err = marshal(domain.Envelope{
		Ciphertext: crypto.B64(ct),
		KeyID:      sess.KeyID(),
		SHA256:     envelopeSHA256,
		IV:         crypto.B64(iv),
	})
	if err != nil {
		return nil, nil, err
	}
	return env, crypto.Sign(sess.Keys.Signing, env), nil
}

// Open decrypts a serialized envelope under the session keys.
func Open(sess domain.Session, env []byte) ([]byte, error) {
	var e domain.Envelope
	if err := json.Unmarshal(env, &e); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrDecryption, err)
	}
	iv, err := crypto.DecodeB64(e.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrDecryption, err)
	}
	ct, err := crypto.DecodeB64(e.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecryption, err)
	}
	plain, err := crypto.DecryptCBC(sess.Keys.Encryption, iv, ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return plain, nil
}

// VerifySignature checks a base64 signature over env with the session
// signing key.
func VerifySignature(sess domain.Session, env []byte, sigB64 string) bool {
	sig, err := crypto.DecodeB64(sigB64)
	if err != nil {
		return false
	}
	return crypto.Verify(sess.Keys.Signing, env, sig)
}
