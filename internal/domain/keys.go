package domain

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"slices"
)

// Scheme is a key-exchange scheme name as used in keyrequestdata.
type Scheme string

const (
	SchemeAsymmetricWrapped Scheme = "ASYMMETRIC_WRAPPED"
	SchemeWidevine          Scheme = "WIDEVINE"
)

// String returns the wire name of the scheme.
func (s Scheme) String() string { return string(s) }

// Keypair is the client's RSA identity for the asymmetric scheme.
type Keypair struct {
	Private *rsa.PrivateKey
}

// PublicDER returns the PKIX DER encoding of the public half.
func (k Keypair) PublicDER() ([]byte, error) {
	if k.Private == nil {
		return nil, errors.New("keypair: no private key")
	}
	return x509.MarshalPKIXPublicKey(&k.Private.PublicKey)
}

// Device key permissions required for the two session keys.
const (
	PermAllowEncrypt         = "AllowEncrypt"
	PermAllowDecrypt         = "AllowDecrypt"
	PermAllowSign            = "AllowSign"
	PermAllowSignatureVerify = "AllowSignatureVerify"

	// DeviceKeyTypeOperatorSession is the only device key type usable as a
	// session key.
	DeviceKeyTypeOperatorSession = "OPERATOR_SESSION"
)

// DeviceKey is one key reported by a decryption device.
type DeviceKey struct {
	ID          []byte
	Type        string
	Permissions []string
	Key         []byte
}

// HasPermissions reports whether k carries every permission in perms.
func (k DeviceKey) HasPermissions(perms ...string) bool {
	for _, p := range perms {
		if !slices.Contains(k.Permissions, p) {
			return false
		}
	}
	return true
}

// KeyExchange is the tagged key-exchange variant: AsymmetricWrapped or
// DeviceBacked. Each branch carries exactly the material it needs.
type KeyExchange interface {
	Scheme() Scheme
	isKeyExchange()
}

// AsymmetricWrapped receives RSA-OAEP wrapped keys for Keypair.
type AsymmetricWrapped struct {
	Keypair Keypair
}

// Scheme implements KeyExchange.
func (AsymmetricWrapped) Scheme() Scheme { return SchemeAsymmetricWrapped }
func (AsymmetricWrapped) isKeyExchange() {}

// DeviceBacked lets Device produce the request and yield the keys.
type DeviceBacked struct {
	Device Device
}

// Scheme implements KeyExchange.
func (DeviceBacked) Scheme() Scheme { return SchemeWidevine }
func (DeviceBacked) isKeyExchange() {}
