package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// The current supported version of the sealed blob format stored on disk.
const sealFormatVersion = 1

var (
	// ErrWrongPassphrase is returned when a sealed keypair does not open
	// with the configured passphrase or its ciphertext was modified.
	ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted keypair")
	// ErrPassphraseRequired is returned when the keypair on disk is sealed
	// and no passphrase is configured.
	ErrPassphraseRequired = errors.New("store: keypair is sealed and no passphrase is configured")
)

// sealedBlob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// scryptParams are the key-derivation costs used when sealing.
type scryptParams struct{ N, R, P int }

func defaultScryptParams() scryptParams { return scryptParams{N: 1 << 15, R: 8, P: 1} }

// seal derives a key from passphrase and seals raw into a JSON blob.
func seal(passphrase string, raw []byte, kdf scryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], kdf.N, kdf.R, kdf.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the key is salt-bound
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(sealedBlob{
		V:      sealFormatVersion,
		Salt:   salt[:],
		N:      kdf.N,
		R:      kdf.R,
		P:      kdf.P,
		Cipher: ct,
	})
}

// unseal opens a JSON blob using a key derived from passphrase.
func unseal(passphrase string, b []byte) ([]byte, error) {
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V < 1 || bl.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported sealed blob version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// isSealed reports whether b looks like a sealed blob rather than PEM.
func isSealed(b []byte) bool {
	var head struct {
		V      int    `json:"v"`
		Cipher []byte `json:"cipher"`
	}
	return json.Unmarshal(b, &head) == nil && head.V > 0 && len(head.Cipher) > 0
}
