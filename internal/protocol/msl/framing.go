package msl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Frames is a response split into its header block and payload blocks.
type Frames struct {
	Header   HeaderFrame
	Payloads []PayloadFrame
}

// HeaderFrame is the first object of a response.
type HeaderFrame struct {
	HeaderData  string          `json:"headerdata"`
	Signature   string          `json:"signature"`
	MasterToken json.RawMessage `json:"mastertoken,omitempty"`
	ErrorData   string          `json:"errordata,omitempty"`
}

// PayloadFrame is one signed, encrypted payload chunk.
type PayloadFrame struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// SplitFrames decodes the stream of concatenated JSON objects in raw. An
// errordata header is returned as a *ServerError; any other structural
// problem wraps ErrFraming.
func SplitFrames(raw []byte) (Frames, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	var f Frames
	if err := dec.Decode(&f.Header); err != nil {
		return Frames{}, fmt.Errorf("%w: header: %v: %s", ErrFraming, err, excerpt(raw))
	}
	if f.Header.ErrorData != "" {
		return Frames{}, DecodeErrorData(f.Header.ErrorData)
	}
	if f.Header.HeaderData == "" {
		return Frames{}, fmt.Errorf("%w: header has no headerdata", ErrFraming)
	}

	for i := 0; ; i++ {
		var p PayloadFrame
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Frames{}, fmt.Errorf("%w: payload %d: %v", ErrFraming, i, err)
		}
		if p.Payload == "" || p.Signature == "" {
			return Frames{}, fmt.Errorf("%w: payload %d is missing payload or signature", ErrFraming, i)
		}
		f.Payloads = append(f.Payloads, p)
	}
	if len(f.Payloads) == 0 {
		return Frames{}, fmt.Errorf("%w: no payload chunks", ErrFraming)
	}
	return f, nil
}
