package msl

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNegotiation = errors.New("msl: negotiation failed")
	ErrKeyNotFound = errors.New("msl: session key not found")
	ErrDecryption  = errors.New("msl: decryption failed")
	ErrFraming     = errors.New("msl: malformed message framing")
	ErrSignature   = errors.New("msl: signature mismatch")
)

// ServerError is an errordata document the server returned in place of a
// message.
type ServerError struct {
	Message      string
	Code         int
	InternalCode int
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("msl: server error %d: %s", e.Code, e.Message)
	}
	return "msl: server error: " + e.Message
}

// ApplicationError carries a failure reported inside a successfully decoded
// response, such as a rights or entitlement error.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string { return "msl: application error: " + e.Message }

type errorData struct {
	ErrorMsg     string `json:"errormsg"`
	ErrorCode    int    `json:"errorcode"`
	InternalCode int    `json:"internalcode"`
}

// DecodeErrorData turns a base64 errordata value into a *ServerError. Values
// that do not decode are reported verbatim.
func DecodeErrorData(s string) *ServerError {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return &ServerError{Message: s}
	}
	var ed errorData
	if err := json.Unmarshal(raw, &ed); err != nil || ed.ErrorMsg == "" {
		return &ServerError{Message: strings.TrimSpace(string(raw)), Code: ed.ErrorCode}
	}
	return &ServerError{Message: ed.ErrorMsg, Code: ed.ErrorCode, InternalCode: ed.InternalCode}
}

func excerpt(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
