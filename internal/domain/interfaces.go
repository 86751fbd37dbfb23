package domain

import (
	"context"
	"encoding/json"
)

// Transport posts a request body and returns the raw response.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) (status int, respBody []byte, err error)
}

// Device is the license/decryption device used by the device-backed scheme.
type Device interface {
	KeyExchangeRequest(ctx context.Context, contentRef []byte) ([]byte, error)
	CompleteKeyExchange(ctx context.Context, response []byte) error
	Keys(ctx context.Context) ([]DeviceKey, error)
}

// TokenStore caches a negotiated Session between runs.
type TokenStore interface {
	Load(ctx context.Context) (Session, bool, error)
	Save(ctx context.Context, sess Session) error
	Clear(ctx context.Context) error
}

// KeypairStore caches the asymmetric keypair between runs.
type KeypairStore interface {
	LoadKeypair() (Keypair, bool, error)
	SaveKeypair(kp Keypair) error
	ClearKeypair() error
}

// KeypairService reuses or creates the client keypair.
type KeypairService interface {
	LoadOrCreate() (kp Keypair, created bool, err error)
}

// Negotiator establishes a Session, from cache or by handshake.
type Negotiator interface {
	Negotiate(ctx context.Context) (Session, error)
}

// Exchanger sends one application request over an established Session.
type Exchanger interface {
	Send(ctx context.Context, sess Session, endpoint, path string, req any) (json.RawMessage, error)
}

// LicenseCapability answers the decryption device's certificate and license
// requests for one piece of content.
type LicenseCapability interface {
	Certificate(ctx context.Context, contentRef string) ([]byte, error)
	License(ctx context.Context, contentRef string, challenge []byte) ([]byte, error)
}
