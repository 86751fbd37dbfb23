package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

// tokenDocument is the persisted form of a session. Its shape is shared by
// the file and Redis backends.
type tokenDocument struct {
	EncryptionKey string `json:"encryption_key"`
	SignKey       string `json:"sign_key"`
	Tokens        struct {
		MasterToken domain.MasterToken `json:"mastertoken"`
	} `json:"tokens"`
}

func encodeSession(sess domain.Session) ([]byte, error) {
	var doc tokenDocument
	doc.EncryptionKey = crypto.B64(sess.Keys.Encryption)
	doc.SignKey = crypto.B64(sess.Keys.Signing)
	doc.Tokens.MasterToken = sess.MasterToken
	return json.MarshalIndent(doc, "", "  ")
}

func decodeSession(identity string, b []byte) (domain.Session, error) {
	var doc tokenDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.Session{}, err
	}
	if doc.EncryptionKey == "" || doc.SignKey == "" {
		return domain.Session{}, errors.New("missing session keys")
	}
	enc, err := crypto.DecodeB64(doc.EncryptionKey)
	if err != nil {
		return domain.Session{}, fmt.Errorf("encryption_key: %w", err)
	}
	sign, err := crypto.DecodeB64(doc.SignKey)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign_key: %w", err)
	}
	return domain.NewSession(identity, doc.Tokens.MasterToken, domain.SessionKeys{Encryption: enc, Signing: sign})
}
