package msl

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

// Parser turns a raw response into the application result it carries.
type Parser struct {
	Verify VerifyMode
}

type cadmiumResponse struct {
	Payload struct {
		Data string `json:"data"`
	} `json:"payload"`
}

// Parse verifies, decrypts and reassembles every payload chunk in raw, then
// unwraps the application JSON from the reassembled body.
func (p Parser) Parse(sess domain.Session, raw []byte) (json.RawMessage, error) {
	frames, err := SplitFrames(raw)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	for i, pf := range frames.Payloads {
		data, err := p.chunk(sess, i, pf)
		if err != nil {
			return nil, err
		}
		body.Write(data)
	}
	return unwrapApplication(body.Bytes())
}

func (p Parser) chunk(sess domain.Session, i int, pf PayloadFrame) ([]byte, error) {
	env, err := crypto.DecodeB64(pf.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload %d: %v", ErrFraming, i, err)
	}
	if p.Verify == VerifyStrict && !VerifySignature(sess, env, pf.Signature) {
		return nil, fmt.Errorf("%w: payload %d", ErrSignature, i)
	}
	plain, err := Open(sess, env)
	if err != nil {
		return nil, fmt.Errorf("payload %d: %w", i, err)
	}
	var pc domain.PayloadChunk
	if err := json.Unmarshal(plain, &pc); err != nil {
		return nil, fmt.Errorf("%w: payload %d is not a chunk: %v", ErrDecryption, i, err)
	}
	data, err := crypto.DecodeB64(pc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: payload %d data: %v", ErrFraming, i, err)
	}
	if pc.CompressionAlgo == CompressionGZIP {
		data, err = crypto.Gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("%w: payload %d: %v", ErrDecryption, i, err)
		}
	}
	return data, nil
}

// unwrapApplication extracts element [1].payload.data of the reassembled
// body and decodes it from base64 to JSON.
func unwrapApplication(body []byte) (json.RawMessage, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("%w: response body: %v: %s", ErrFraming, err, excerpt(body))
	}
	if len(outer) < 2 {
		return nil, fmt.Errorf("%w: response body has %d elements", ErrFraming, len(outer))
	}
	var resp cadmiumResponse
	if err := json.Unmarshal(outer[1], &resp); err != nil {
		return nil, fmt.Errorf("%w: response envelope: %v", ErrFraming, err)
	}
	data, err := crypto.DecodeB64(resp.Payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: response data: %v", ErrFraming, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response data is not JSON: %s", ErrFraming, excerpt(data))
	}
	return json.RawMessage(data), nil
}
