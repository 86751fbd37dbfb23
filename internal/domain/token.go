package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MasterToken is the server-issued session credential as it appears on the
// wire. It is opaque to the client apart from the decoded TokenData.
type MasterToken struct {
	TokenData string `json:"tokendata"`
	Signature string `json:"signature"`
}

// TokenData is the base64 JSON document carried in MasterToken.TokenData.
type TokenData struct {
	SequenceNumber int64 `json:"sequencenumber"`
	Expiration     int64 `json:"expiration"`
	RenewalWindow  int64 `json:"renewalwindow,omitempty"`
	SerialNumber   int64 `json:"serialnumber,omitempty"`
}

// Decode parses the token data of t.
func (t MasterToken) Decode() (TokenData, error) {
	if t.TokenData == "" {
		return TokenData{}, errors.New("master token: empty tokendata")
	}
	raw, err := base64.StdEncoding.DecodeString(t.TokenData)
	if err != nil {
		return TokenData{}, fmt.Errorf("master token: decode tokendata: %w", err)
	}
	var td TokenData
	if err := json.Unmarshal(raw, &td); err != nil {
		return TokenData{}, fmt.Errorf("master token: parse tokendata: %w", err)
	}
	if td.Expiration <= 0 {
		return TokenData{}, errors.New("master token: missing expiration")
	}
	return td, nil
}

// ExpiresAt returns the token expiration as a time.
func (d TokenData) ExpiresAt() time.Time { return time.Unix(d.Expiration, 0) }
