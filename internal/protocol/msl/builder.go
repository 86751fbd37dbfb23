package msl

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

const (
	DefaultRecipient = "Netflix"
	DefaultPath      = "/cbp/cadmium-13"
	CompressionGZIP  = "GZIP"

	// MaxMessageID bounds message ids to the 52-bit range.
	MaxMessageID = 1 << 52

	encoderFormatJSON     = "JSON"
	userAuthEmailPassword = "EMAIL_PASSWORD"
)

// DefaultLanguages is advertised when the Builder has none configured.
var DefaultLanguages = []string{"en-US"}

// Request is one serialized outgoing message.
type Request struct {
	Body      []byte
	MessageID int64
}

// Builder constructs request messages. The zero value is usable.
type Builder struct {
	Recipient string
	Languages []string
	// UserAuth, when set, re-authenticates the user on every request.
	UserAuth *domain.EmailPassword

	Rand io.Reader
	Now  func() time.Time
}

type headerBlock struct {
	HeaderData  string              `json:"headerdata"`
	Signature   string              `json:"signature"`
	MasterToken *domain.MasterToken `json:"mastertoken,omitempty"`
}

type payloadBlock struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type cadmiumRequest struct {
	Headers struct{} `json:"headers"`
	Path    string   `json:"path"`
	Payload struct {
		Data string `json:"data"`
	} `json:"payload"`
	Query string `json:"query"`
}

// Build wraps appRequest for path and seals it under sess.
func (b *Builder) Build(sess domain.Session, path string, appRequest any) (Request, error) {
	hdr, err := b.header(sess.Identity, false, CompressionGZIP)
	if err != nil {
		return Request{}, err
	}
	if b.UserAuth != nil {
		hdr.UserAuthData = &domain.UserAuthData{Scheme: userAuthEmailPassword, AuthData: *b.UserAuth}
	}

	data, err := cadmiumPayload(path, appRequest)
	if err != nil {
		return Request{}, err
	}
	compressed, err := crypto.Gzip(data)
	if err != nil {
		return Request{}, fmt.Errorf("msl: compress payload: %w", err)
	}
	chunk := domain.PayloadChunk{
		MessageID:       hdr.MessageID,
		Data:            crypto.B64(compressed),
		CompressionAlgo: CompressionGZIP,
		SequenceNumber:  1,
		EndOfMsg:        true,
	}

	hdrJSON, err := marshal(hdr)
	if err != nil {
		return Request{}, err
	}
	chunkJSON, err := marshal(chunk)
	if err != nil {
		return Request{}, err
	}
	hdrEnv, hdrSig, err := Seal(sess, hdrJSON, b.Rand)
	if err != nil {
		return Request{}, fmt.Errorf("msl: seal header: %w", err)
	}
	chunkEnv, chunkSig, err := Seal(sess, chunkJSON, b.Rand)
	if err != nil {
		return Request{}, fmt.Errorf("msl: seal payload: %w", err)
	}

	token := sess.MasterToken
	head, err := marshal(headerBlock{
		HeaderData:  crypto.B64(hdrEnv),
		Signature:   crypto.B64(hdrSig),
		MasterToken: &token,
	})
	if err != nil {
		return Request{}, err
	}
	body, err := marshal(payloadBlock{
		Payload:   crypto.B64(chunkEnv),
		Signature: crypto.B64(chunkSig),
	})
	if err != nil {
		return Request{}, err
	}
	return Request{Body: append(head, body...), MessageID: hdr.MessageID}, nil
}

func (b *Builder) header(sender string, handshake bool, compression string) (domain.Header, error) {
	id, err := NewMessageID(b.Rand)
	if err != nil {
		return domain.Header{}, err
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	recipient := b.Recipient
	if recipient == "" {
		recipient = DefaultRecipient
	}
	languages := b.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	algos := []string{}
	if compression != "" {
		algos = append(algos, compression)
	}
	return domain.Header{
		Sender:    sender,
		Renewable: true,
		Capabilities: domain.Capabilities{
			Languages:        languages,
			CompressionAlgos: algos,
			EncoderFormats:   []string{encoderFormatJSON},
		},
		Handshake:     handshake,
		NonReplayable: false,
		Recipient:     recipient,
		MessageID:     id,
		Timestamp:     now().Unix(),
	}, nil
}

// NewMessageID draws a message id uniformly from [0, MaxMessageID].
func NewMessageID(r io.Reader) (int64, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, big.NewInt(MaxMessageID+1))
	if err != nil {
		return 0, fmt.Errorf("msl: message id: %w", err)
	}
	return n.Int64(), nil
}

// cadmiumPayload renders the fixed outer request envelope around appRequest.
// The result ends in a newline, as the server expects.
func cadmiumPayload(path string, appRequest any) ([]byte, error) {
	if path == "" {
		path = DefaultPath
	}
	inner, err := marshal(appRequest)
	if err != nil {
		return nil, fmt.Errorf("msl: encode request: %w", err)
	}
	req := cadmiumRequest{Path: path}
	req.Payload.Data = string(inner)

	out, err := marshal([]any{struct{}{}, req})
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// marshal encodes v as compact JSON without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
