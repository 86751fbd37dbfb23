package mslserver

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
)

// Handler produces the application result for one decoded request.
type Handler func(request json.RawMessage) (any, error)

// Received is one message the server decrypted.
type Received struct {
	Endpoint string
	Path     string
	Header   domain.Header
	Request  json.RawMessage
}

// Server is a fake MSL peer. Configure the exported fields before serving.
type Server struct {
	// Keys are issued to every negotiated session.
	Keys domain.SessionKeys
	// Scheme, when set, is answered regardless of the requested scheme.
	Scheme domain.Scheme
	// TokenTTL is the lifetime of issued master tokens (default 24h).
	TokenTTL time.Duration
	// Chunks is the number of payload chunks per response (default 1).
	Chunks int
	// HandshakeError, when set, is returned as errordata to handshakes.
	HandshakeError string
	// FailStatus, when non-zero, is returned as the HTTP status of every request.
	FailStatus int

	EncryptionKeyID []byte
	HMACKeyID       []byte

	mu         sync.Mutex
	seq        int64
	sessions   map[string]domain.Session
	handlers   map[string]Handler
	handshakes []domain.KeyRequestData
	received   []Received
}

// New returns a server issuing fresh random session keys.
func New() (*Server, error) {
	enc := make([]byte, 16)
	sign := make([]byte, 32)
	if _, err := rand.Read(enc); err != nil {
		return nil, err
	}
	if _, err := rand.Read(sign); err != nil {
		return nil, err
	}
	return &Server{
		Keys:            domain.SessionKeys{Encryption: enc, Signing: sign},
		TokenTTL:        24 * time.Hour,
		Chunks:          1,
		EncryptionKeyID: []byte("enc-key-id"),
		HMACKeyID:       []byte("hmac-key-id"),
		sessions:        make(map[string]domain.Session),
		handlers:        make(map[string]Handler),
	}, nil
}

// Handle registers h for the request path carried inside messages.
func (s *Server) Handle(path string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// Handshakes returns the key-request data of every handshake seen so far.
func (s *Server) Handshakes() []domain.KeyRequestData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.KeyRequestData(nil), s.handshakes...)
}

// Received returns every decrypted message seen so far.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received...)
}

// Handler routes POST /msl/{endpoint}.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/msl/{endpoint}", s.serve).Methods(http.MethodPost)
	return r
}

type firstObject struct {
	EntityAuthData json.RawMessage `json:"entityauthdata"`
	HeaderData     string          `json:"headerdata"`
}

type keyRequest struct {
	Scheme  domain.Scheme   `json:"scheme"`
	KeyData json.RawMessage `json:"keydata"`
}

type handshakeHeader struct {
	Sender         string       `json:"sender"`
	Handshake      bool         `json:"handshake"`
	KeyRequestData []keyRequest `json:"keyrequestdata"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if s.FailStatus != 0 {
		http.Error(w, "unavailable", s.FailStatus)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var first firstObject
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&first); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var out []byte
	if len(first.EntityAuthData) > 0 {
		out, err = s.handshake(first.HeaderData)
	} else {
		out, err = s.message(mux.Vars(r)["endpoint"], raw)
	}
	if err != nil {
		out = EncodeError(err.Error(), 1)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (s *Server) handshake(headerData string) ([]byte, error) {
	raw, err := crypto.DecodeB64(headerData)
	if err != nil {
		return nil, fmt.Errorf("headerdata: %w", err)
	}
	var hdr handshakeHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("headerdata: %w", err)
	}
	if !hdr.Handshake || len(hdr.KeyRequestData) != 1 {
		return nil, fmt.Errorf("not a handshake")
	}
	kr := hdr.KeyRequestData[0]

	s.mu.Lock()
	s.handshakes = append(s.handshakes, domain.KeyRequestData{Scheme: kr.Scheme, KeyData: kr.KeyData})
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if s.HandshakeError != "" {
		return EncodeError(s.HandshakeError, 5), nil
	}

	answer := kr.Scheme
	if s.Scheme != "" {
		answer = s.Scheme
	}
	var keyData any
	switch kr.Scheme {
	case domain.SchemeAsymmetricWrapped:
		keyData, err = s.wrapKeys(kr.KeyData)
	case domain.SchemeWidevine:
		keyData, err = s.deviceKeys(kr.KeyData)
	default:
		err = fmt.Errorf("unsupported scheme %q", kr.Scheme)
	}
	if err != nil {
		return nil, err
	}

	token := NewToken(seq, time.Now().Add(s.TokenTTL))
	sess, err := domain.NewSession(hdr.Sender, token, s.Keys)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[token.TokenData] = sess
	s.mu.Unlock()

	resp, err := json.Marshal(map[string]any{
		"sender": msl.DefaultRecipient,
		"keyresponsedata": map[string]any{
			"mastertoken": token,
			"scheme":      answer,
			"keydata":     keyData,
		},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"headerdata": crypto.B64(resp)})
}

func (s *Server) wrapKeys(raw json.RawMessage) (msl.AsymmetricKeyResponse, error) {
	var req msl.AsymmetricKeyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return msl.AsymmetricKeyResponse{}, err
	}
	der, err := crypto.DecodeB64(req.PublicKey)
	if err != nil {
		return msl.AsymmetricKeyResponse{}, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return msl.AsymmetricKeyResponse{}, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return msl.AsymmetricKeyResponse{}, fmt.Errorf("public key is not RSA")
	}
	enc, err := wrapJWK(pub, s.Keys.Encryption)
	if err != nil {
		return msl.AsymmetricKeyResponse{}, err
	}
	sign, err := wrapJWK(pub, s.Keys.Signing)
	if err != nil {
		return msl.AsymmetricKeyResponse{}, err
	}
	return msl.AsymmetricKeyResponse{KeyPairID: req.KeyPairID, EncryptionKey: enc, HMACKey: sign}, nil
}

func wrapJWK(pub *rsa.PublicKey, key []byte) (string, error) {
	jwk, err := json.Marshal(map[string]any{
		"alg":     "A128CBC",
		"ext":     true,
		"k":       crypto.EncodeKeyURL(key),
		"key_ops": []string{"encrypt", "decrypt"},
		"kty":     "oct",
	})
	if err != nil {
		return "", err
	}
	ct, err := crypto.WrapOAEP(pub, jwk)
	if err != nil {
		return "", err
	}
	return crypto.B64(ct), nil
}

func (s *Server) deviceKeys(raw json.RawMessage) (msl.WidevineKeyResponse, error) {
	var req msl.WidevineKeyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return msl.WidevineKeyResponse{}, err
	}
	blob, err := crypto.DecodeB64(req.KeyRequest)
	if err != nil {
		return msl.WidevineKeyResponse{}, err
	}
	return msl.WidevineKeyResponse{
		CDMKeyResponse:  crypto.B64(append([]byte("key-response:"), blob...)),
		EncryptionKeyID: crypto.B64(s.EncryptionKeyID),
		HMACKeyID:       crypto.B64(s.HMACKeyID),
	}, nil
}

type requestEnvelope struct {
	Path    string `json:"path"`
	Payload struct {
		Data string `json:"data"`
	} `json:"payload"`
}

func (s *Server) message(endpoint string, raw []byte) ([]byte, error) {
	frames, err := msl.SplitFrames(raw)
	if err != nil {
		return nil, err
	}
	var token domain.MasterToken
	if err := json.Unmarshal(frames.Header.MasterToken, &token); err != nil {
		return nil, fmt.Errorf("mastertoken: %w", err)
	}
	s.mu.Lock()
	sess, ok := s.sessions[token.TokenData]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown master token")
	}

	hdrEnv, err := crypto.DecodeB64(frames.Header.HeaderData)
	if err != nil {
		return nil, err
	}
	if !msl.VerifySignature(sess, hdrEnv, frames.Header.Signature) {
		return nil, fmt.Errorf("header signature mismatch")
	}
	hdrJSON, err := msl.Open(sess, hdrEnv)
	if err != nil {
		return nil, err
	}
	var hdr domain.Header
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, err
	}

	var body []byte
	for _, pf := range frames.Payloads {
		env, err := crypto.DecodeB64(pf.Payload)
		if err != nil {
			return nil, err
		}
		if !msl.VerifySignature(sess, env, pf.Signature) {
			return nil, fmt.Errorf("payload signature mismatch")
		}
		plain, err := msl.Open(sess, env)
		if err != nil {
			return nil, err
		}
		var pc domain.PayloadChunk
		if err := json.Unmarshal(plain, &pc); err != nil {
			return nil, err
		}
		data, err := crypto.DecodeB64(pc.Data)
		if err != nil {
			return nil, err
		}
		if pc.CompressionAlgo == msl.CompressionGZIP {
			if data, err = crypto.Gunzip(data); err != nil {
				return nil, err
			}
		}
		body = append(body, data...)
	}

	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil || len(outer) != 2 {
		return nil, fmt.Errorf("malformed request body")
	}
	var req requestEnvelope
	if err := json.Unmarshal(outer[1], &req); err != nil {
		return nil, err
	}
	request := json.RawMessage(req.Payload.Data)

	s.mu.Lock()
	s.received = append(s.received, Received{Endpoint: endpoint, Path: req.Path, Header: hdr, Request: request})
	h := s.handlers[req.Path]
	s.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("no handler for %s", req.Path)
	}
	result, err := h(request)
	if err != nil {
		return nil, err
	}
	return EncodeResponse(sess, result, s.Chunks)
}
