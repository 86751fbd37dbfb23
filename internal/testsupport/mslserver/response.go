package mslserver

import (
	"encoding/json"
	"fmt"
	"time"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
)

// NewToken issues a master token with the given sequence number and expiry.
func NewToken(seq int64, expiresAt time.Time) domain.MasterToken {
	td, _ := json.Marshal(domain.TokenData{
		SequenceNumber: seq,
		Expiration:     expiresAt.Unix(),
		SerialNumber:   seq + 1000,
	})
	return domain.MasterToken{
		TokenData: crypto.B64(td),
		Signature: crypto.B64([]byte(fmt.Sprintf("token-signature-%d", seq))),
	}
}

type responseEnvelope struct {
	Payload struct {
		Data string `json:"data"`
	} `json:"payload"`
	Status int `json:"status"`
}

// EncodeResponse renders result the way a server answers a message: the
// application JSON is wrapped, split into chunks pieces, and every chunk is
// compressed, sealed and signed under sess.
func EncodeResponse(sess domain.Session, result any, chunks int) ([]byte, error) {
	if chunks < 1 {
		chunks = 1
	}
	app, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var env responseEnvelope
	env.Payload.Data = crypto.B64(app)
	env.Status = 200
	body, err := json.Marshal([]any{struct{}{}, env})
	if err != nil {
		return nil, err
	}

	messageID, err := msl.NewMessageID(nil)
	if err != nil {
		return nil, err
	}
	hdr, err := json.Marshal(domain.Header{
		Sender:    msl.DefaultRecipient,
		Recipient: sess.Identity,
		MessageID: messageID,
		Timestamp: time.Now().Unix(),
		Capabilities: domain.Capabilities{
			CompressionAlgos: []string{msl.CompressionGZIP},
			EncoderFormats:   []string{"JSON"},
		},
	})
	if err != nil {
		return nil, err
	}
	hdrEnv, hdrSig, err := msl.Seal(sess, hdr, nil)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(msl.HeaderFrame{
		HeaderData: crypto.B64(hdrEnv),
		Signature:  crypto.B64(hdrSig),
	})
	if err != nil {
		return nil, err
	}

	for i, piece := range split(body, chunks) {
		compressed, err := crypto.Gzip(piece)
		if err != nil {
			return nil, err
		}
		chunk, err := json.Marshal(domain.PayloadChunk{
			MessageID:       messageID,
			Data:            crypto.B64(compressed),
			CompressionAlgo: msl.CompressionGZIP,
			SequenceNumber:  int64(i + 1),
			EndOfMsg:        i == chunks-1,
		})
		if err != nil {
			return nil, err
		}
		env, sig, err := msl.Seal(sess, chunk, nil)
		if err != nil {
			return nil, err
		}
		frame, err := json.Marshal(msl.PayloadFrame{
			Payload:   crypto.B64(env),
			Signature: crypto.B64(sig),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, frame...)
	}
	return out, nil
}

// EncodeError renders an errordata response.
func EncodeError(message string, code int) []byte {
	ed, _ := json.Marshal(map[string]any{
		"errormsg":     message,
		"errorcode":    code,
		"internalcode": code * 1000,
	})
	out, _ := json.Marshal(map[string]string{"errordata": crypto.B64(ed)})
	return out
}

// split cuts b into n contiguous pieces; trailing pieces may be empty when b
// is shorter than n.
func split(b []byte, n int) [][]byte {
	size := (len(b) + n - 1) / n
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		lo := min(i*size, len(b))
		hi := min(lo+size, len(b))
		out = append(out, b[lo:hi])
	}
	return out
}
