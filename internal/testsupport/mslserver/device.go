package mslserver

import (
	"context"
	"errors"
	"sync"

	"mslclient/internal/domain"
)

// Device is a fake decryption device. Its keys only become visible after a
// key exchange completes.
type Device struct {
	mu        sync.Mutex
	keys      []domain.DeviceKey
	completed bool

	ContentRefs [][]byte
	Responses   [][]byte
}

var _ domain.Device = (*Device)(nil)

// NewDevice returns a device that will report keys.
func NewDevice(keys []domain.DeviceKey) *Device {
	return &Device{keys: keys}
}

// Device returns a fake device holding the server's session keys under the
// advertised key ids, surrounded by keys that must not be selected.
func (s *Server) Device() *Device {
	return NewDevice(s.DeviceKeys())
}

// DeviceKeys lists the keys a device reports after a handshake with s.
func (s *Server) DeviceKeys() []domain.DeviceKey {
	encPerms := []string{domain.PermAllowEncrypt, domain.PermAllowDecrypt}
	signPerms := []string{domain.PermAllowSign, domain.PermAllowSignatureVerify}
	return []domain.DeviceKey{
		{ID: s.EncryptionKeyID, Type: "CONTENT", Permissions: encPerms, Key: []byte("wrong-type-key!!")},
		{ID: []byte("other-id"), Type: domain.DeviceKeyTypeOperatorSession, Permissions: encPerms, Key: []byte("wrong-id-key!!!!")},
		{ID: s.HMACKeyID, Type: domain.DeviceKeyTypeOperatorSession, Permissions: []string{domain.PermAllowSign}, Key: []byte("missing-perm-key")},
		{ID: s.EncryptionKeyID, Type: domain.DeviceKeyTypeOperatorSession, Permissions: encPerms, Key: s.Keys.Encryption},
		{ID: s.HMACKeyID, Type: domain.DeviceKeyTypeOperatorSession, Permissions: signPerms, Key: s.Keys.Signing},
	}
}

func (d *Device) KeyExchangeRequest(_ context.Context, contentRef []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ContentRefs = append(d.ContentRefs, append([]byte(nil), contentRef...))
	return append([]byte("key-request:"), contentRef...), nil
}

func (d *Device) CompleteKeyExchange(_ context.Context, response []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(response) == 0 {
		return errors.New("device: empty key response")
	}
	d.Responses = append(d.Responses, append([]byte(nil), response...))
	d.completed = true
	return nil
}

func (d *Device) Keys(context.Context) ([]domain.DeviceKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.completed {
		return nil, nil
	}
	return append([]domain.DeviceKey(nil), d.keys...), nil
}
