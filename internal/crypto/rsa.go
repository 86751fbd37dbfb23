package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeypairBits is the modulus size of generated client keypairs.
const KeypairBits = 2048

// GenerateKeypair returns a fresh RSA private key of KeypairBits.
func GenerateKeypair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeypairBits)
}

// MarshalPrivateKey encodes priv as a PKCS#1 "RSA PRIVATE KEY" PEM block.
func MarshalPrivateKey(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
}

// ParsePrivateKey accepts a PEM (PKCS#1 or PKCS#8) or raw DER private key.
func ParsePrivateKey(b []byte) (*rsa.PrivateKey, error) {
	der := b
	if block, _ := pem.Decode(b); block != nil {
		der = block.Bytes
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("crypto: private key is not RSA")
	}
	return rk, nil
}

// UnwrapOAEP decrypts an RSA-OAEP (SHA-1, empty label) ciphertext.
func UnwrapOAEP(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
}

// WrapOAEP is the inverse of UnwrapOAEP.
func WrapOAEP(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plaintext, nil)
}
