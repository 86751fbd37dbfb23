package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
)

// StatusError is a non-200 answer to a message.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("msl message: unexpected status %d: %s", e.Status, e.Body)
}

// Service sends application requests and returns their decoded results.
type Service struct {
	tr      domain.Transport
	builder *msl.Builder
	parser  msl.Parser
	log     *zap.Logger
}

// New constructs a message Service.
func New(tr domain.Transport, builder *msl.Builder, parser msl.Parser, log *zap.Logger) *Service {
	if builder == nil {
		builder = &msl.Builder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{tr: tr, builder: builder, parser: parser, log: log}
}

// Send wraps req for path, posts it to endpoint under sess and returns the
// application JSON of the response.
//
// Steps:
//  1. Build the header and payload chunk, each encrypted and signed with the
//     session keys.
//  2. Post the message. A non-200 status is returned as the server's
//     errordata when the body carries one, otherwise as a *StatusError.
//  3. Parse the response: verify and decrypt every chunk, reassemble them in
//     order and unwrap the application result.
func (s *Service) Send(ctx context.Context, sess domain.Session, endpoint, path string, req any) (json.RawMessage, error) {
	wire, err := s.builder.Build(sess, path, req)
	if err != nil {
		return nil, err
	}
	log := s.log.With(
		zap.String("exchange_id", uuid.NewString()),
		zap.Int64("message_id", wire.MessageID),
		zap.String("endpoint", endpoint))

	status, body, err := s.tr.Post(ctx, endpoint, wire.Body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// An errordata document is more useful than the status alone.
		var se *msl.ServerError
		if _, ferr := msl.SplitFrames(body); errors.As(ferr, &se) {
			return nil, se
		}
		return nil, &StatusError{Status: status, Body: excerpt(body)}
	}

	result, err := s.parser.Parse(sess, body)
	if err != nil {
		log.Warn("response rejected", zap.Int("response_bytes", len(body)), zap.Error(err))
		return nil, err
	}
	log.Debug("message exchanged",
		zap.Int("request_bytes", len(wire.Body)),
		zap.Int("response_bytes", len(body)),
		zap.Stringer("verify", s.parser.Verify))
	return result, nil
}

func excerpt(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Compile-time assertion that Service implements domain.Exchanger.
var _ domain.Exchanger = (*Service)(nil)
