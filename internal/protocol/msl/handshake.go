package msl

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/util/memzero"
)

const (
	entityAuthNone   = "NONE"
	asymKeyPairID    = "superKeyPair"
	asymMechanismJWK = "JWK_RSA"
)

// AsymmetricKeyRequest is the keydata of an ASYMMETRIC_WRAPPED key request.
type AsymmetricKeyRequest struct {
	KeyPairID string `json:"keypairid"`
	Mechanism string `json:"mechanism"`
	PublicKey string `json:"publickey"`
}

// WidevineKeyRequest is the keydata of a WIDEVINE key request.
type WidevineKeyRequest struct {
	KeyRequest string `json:"keyrequest"`
}

// AsymmetricKeyResponse is the keydata of an ASYMMETRIC_WRAPPED key response.
type AsymmetricKeyResponse struct {
	KeyPairID     string `json:"keypairid,omitempty"`
	EncryptionKey string `json:"encryptionkey"`
	HMACKey       string `json:"hmackey"`
}

// WidevineKeyResponse is the keydata of a WIDEVINE key response.
type WidevineKeyResponse struct {
	CDMKeyResponse  string `json:"cdmkeyresponse"`
	EncryptionKeyID string `json:"encryptionkeyid"`
	HMACKeyID       string `json:"hmackeyid"`
}

// KeyResponse is the keyresponsedata of a handshake response.
type KeyResponse struct {
	MasterToken domain.MasterToken `json:"mastertoken"`
	Scheme      domain.Scheme      `json:"scheme"`
	KeyData     json.RawMessage    `json:"keydata"`
}

// jwk is the symmetric JSON Web Key wrapped inside RSA-OAEP.
type jwk struct {
	K   string `json:"k"`
	Kty string `json:"kty,omitempty"`
}

type entityAuthData struct {
	AuthData struct {
		Identity string `json:"identity"`
	} `json:"authdata"`
	Scheme string `json:"scheme"`
}

// handshakeRequest fields are declared in sorted key order.
type handshakeRequest struct {
	EntityAuthData entityAuthData `json:"entityauthdata"`
	HeaderData     string         `json:"headerdata"`
	Signature      string         `json:"signature"`
}

type handshakeResponse struct {
	ErrorData  string `json:"errordata"`
	HeaderData string `json:"headerdata"`
}

// AsymmetricRequestData builds key-request data carrying the client's PKIX DER
// public key.
func AsymmetricRequestData(publicDER []byte) domain.KeyRequestData {
	return domain.KeyRequestData{
		Scheme: domain.SchemeAsymmetricWrapped,
		KeyData: AsymmetricKeyRequest{
			KeyPairID: asymKeyPairID,
			Mechanism: asymMechanismJWK,
			PublicKey: crypto.B64(publicDER),
		},
	}
}

// WidevineRequestData builds key-request data carrying a device key-exchange
// request blob.
func WidevineRequestData(blob []byte) domain.KeyRequestData {
	return domain.KeyRequestData{
		Scheme:  domain.SchemeWidevine,
		KeyData: WidevineKeyRequest{KeyRequest: crypto.B64(blob)},
	}
}

// Handshake builds the unauthenticated key-exchange message for identity.
// The header is sent in the clear with an empty signature and no master token.
func (b *Builder) Handshake(identity string, kr domain.KeyRequestData) (Request, error) {
	hdr, err := b.header(identity, true, "")
	if err != nil {
		return Request{}, err
	}
	hdr.KeyRequestData = []domain.KeyRequestData{kr}
	hdrJSON, err := marshal(hdr)
	if err != nil {
		return Request{}, err
	}
	req := handshakeRequest{HeaderData: crypto.B64(hdrJSON)}
	req.EntityAuthData.Scheme = entityAuthNone
	req.EntityAuthData.AuthData.Identity = identity
	body, err := marshal(req)
	if err != nil {
		return Request{}, err
	}
	return Request{Body: body, MessageID: hdr.MessageID}, nil
}

// ParseHandshakeResponse validates the transport status and extracts the
// keyresponsedata. Every failure wraps ErrNegotiation.
func ParseHandshakeResponse(status int, body []byte) (KeyResponse, error) {
	if status != http.StatusOK {
		return KeyResponse{}, fmt.Errorf("%w: unexpected status %d: %s", ErrNegotiation, status, excerpt(body))
	}
	var resp handshakeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return KeyResponse{}, fmt.Errorf("%w: response is not JSON: %v", ErrNegotiation, err)
	}
	if resp.ErrorData != "" {
		return KeyResponse{}, fmt.Errorf("%w: %w", ErrNegotiation, DecodeErrorData(resp.ErrorData))
	}
	raw, err := crypto.DecodeB64(resp.HeaderData)
	if err != nil || len(raw) == 0 {
		return KeyResponse{}, fmt.Errorf("%w: missing or undecodable headerdata", ErrNegotiation)
	}
	var hdr struct {
		KeyResponseData *KeyResponse `json:"keyresponsedata"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return KeyResponse{}, fmt.Errorf("%w: headerdata: %v", ErrNegotiation, err)
	}
	if hdr.KeyResponseData == nil {
		return KeyResponse{}, fmt.Errorf("%w: headerdata has no keyresponsedata", ErrNegotiation)
	}
	return *hdr.KeyResponseData, nil
}

// Expect fails with ErrNegotiation unless the server answered with scheme.
func (r KeyResponse) Expect(scheme domain.Scheme) error {
	if r.Scheme != scheme {
		return fmt.Errorf("%w: key exchange scheme mismatch: requested %s, got %s", ErrNegotiation, scheme, r.Scheme)
	}
	return nil
}

// UnwrapAsymmetricKeys decrypts the RSA-OAEP wrapped JWKs in keydata with the
// client's private key.
func UnwrapAsymmetricKeys(kp domain.Keypair, keyData json.RawMessage) (domain.SessionKeys, error) {
	if kp.Private == nil {
		return domain.SessionKeys{}, fmt.Errorf("%w: no private key for asymmetric unwrap", ErrNegotiation)
	}
	var kd AsymmetricKeyResponse
	if err := json.Unmarshal(keyData, &kd); err != nil {
		return domain.SessionKeys{}, fmt.Errorf("%w: keydata: %v", ErrNegotiation, err)
	}
	enc, err := unwrapJWK(kp, kd.EncryptionKey)
	if err != nil {
		return domain.SessionKeys{}, fmt.Errorf("%w: encryption key: %v", ErrNegotiation, err)
	}
	sign, err := unwrapJWK(kp, kd.HMACKey)
	if err != nil {
		return domain.SessionKeys{}, fmt.Errorf("%w: hmac key: %v", ErrNegotiation, err)
	}
	return domain.SessionKeys{Encryption: enc, Signing: sign}, nil
}

func unwrapJWK(kp domain.Keypair, wrappedB64 string) ([]byte, error) {
	wrapped, err := crypto.DecodeB64(wrappedB64)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.UnwrapOAEP(kp.Private, wrapped)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(plain)
	var key jwk
	if err := json.Unmarshal(plain, &key); err != nil {
		return nil, err
	}
	if key.K == "" {
		return nil, fmt.Errorf("jwk has no k member")
	}
	return crypto.DecodeKeyURL(key.K)
}

// DeviceKeyResponse is decoded WIDEVINE keydata.
type DeviceKeyResponse struct {
	Response        []byte
	EncryptionKeyID []byte
	HMACKeyID       []byte
}

// DecodeWidevineKeyData decodes the base64 members of WIDEVINE keydata.
func DecodeWidevineKeyData(keyData json.RawMessage) (DeviceKeyResponse, error) {
	var kd WidevineKeyResponse
	if err := json.Unmarshal(keyData, &kd); err != nil {
		return DeviceKeyResponse{}, fmt.Errorf("%w: keydata: %v", ErrNegotiation, err)
	}
	var out DeviceKeyResponse
	var err error
	if out.Response, err = crypto.DecodeB64(kd.CDMKeyResponse); err != nil || len(out.Response) == 0 {
		return DeviceKeyResponse{}, fmt.Errorf("%w: missing or undecodable cdmkeyresponse", ErrNegotiation)
	}
	if out.EncryptionKeyID, err = crypto.DecodeB64(kd.EncryptionKeyID); err != nil || len(out.EncryptionKeyID) == 0 {
		return DeviceKeyResponse{}, fmt.Errorf("%w: missing or undecodable encryptionkeyid", ErrNegotiation)
	}
	if out.HMACKeyID, err = crypto.DecodeB64(kd.HMACKeyID); err != nil || len(out.HMACKeyID) == 0 {
		return DeviceKeyResponse{}, fmt.Errorf("%w: missing or undecodable hmackeyid", ErrNegotiation)
	}
	return out, nil
}
