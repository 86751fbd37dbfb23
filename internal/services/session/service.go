package session

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
)

// placeholderContentRef seeds the device key request during a handshake, when
// no real content is involved yet.
var placeholderContentRef = []byte{0x0A, 0x7A, 0x00, 0x6C, 0x38, 0x2B}

// Config selects who negotiates, where, and with which key exchange.
type Config struct {
	Identity string
	Endpoint string
	Scheme   domain.Scheme
}

// Service negotiates sessions and persists them in a TokenStore.
type Service struct {
	cfg      Config
	tokens   domain.TokenStore
	keypairs domain.KeypairService
	device   domain.Device
	tr       domain.Transport
	builder  *msl.Builder
	log      *zap.Logger
}

// New constructs a session Service. keypairs is only consulted for the
// asymmetric scheme and device only for the device-backed one; either may be
// nil when its scheme is not configured.
func New(
	cfg Config,
	tokens domain.TokenStore,
	keypairs domain.KeypairService,
	device domain.Device,
	tr domain.Transport,
	builder *msl.Builder,
	log *zap.Logger,
) *Service {
	if builder == nil {
		builder = &msl.Builder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Scheme == "" {
		cfg.Scheme = domain.SchemeAsymmetricWrapped
	}
	return &Service{
		cfg:      cfg,
		tokens:   tokens,
		keypairs: keypairs,
		device:   device,
		tr:       tr,
		builder:  builder,
		log:      log,
	}
}

// Negotiate returns a valid cached session or performs a handshake.
//
// Steps:
//  1. Load the cached session from the token store; a session that is still
//     valid past the margin is returned as is and nothing is written.
//  2. Otherwise run a handshake for the configured scheme (see handshake).
//
// Every log line of one negotiation carries the same negotiation_id.
func (s *Service) Negotiate(ctx context.Context) (domain.Session, error) {
	log := s.log.With(zap.String("negotiation_id", uuid.NewString()), zap.String("identity", s.cfg.Identity))

	if s.tokens != nil {
		sess, ok, err := s.tokens.Load(ctx)
		if err != nil {
			return domain.Session{}, err
		}
		if ok {
			log.Debug("using cached master token",
				zap.Int64("sequence_number", sess.Token.SequenceNumber),
				zap.Time("expires_at", sess.ExpiresAt()))
			return sess, nil
		}
	}
	return s.handshake(ctx, log)
}

// Renegotiate performs a handshake without consulting the cache.
func (s *Service) Renegotiate(ctx context.Context) (domain.Session, error) {
	log := s.log.With(zap.String("negotiation_id", uuid.NewString()), zap.String("identity", s.cfg.Identity))
	return s.handshake(ctx, log)
}

// handshake obtains a fresh master token and session keys.
//
// Steps:
//  1. Prepare key material: reuse or create the RSA keypair, or ask the
//     device for a key request.
//  2. Post the handshake message to the manifest endpoint.
//  3. Parse the key response; errordata or a scheme mismatch ends here.
//  4. Unwrap the keys (RSA-OAEP) or complete the device exchange and select
//     the operator session keys.
//  5. Save the new session. A failed save is logged; the session is still
//     returned.
func (s *Service) handshake(ctx context.Context, log *zap.Logger) (domain.Session, error) {
	kx, err := s.keyExchange()
	if err != nil {
		return domain.Session{}, err
	}
	log = log.With(zap.Stringer("scheme", kx.Scheme()))

	krd, err := s.requestData(ctx, kx)
	if err != nil {
		return domain.Session{}, err
	}
	req, err := s.builder.Handshake(s.cfg.Identity, krd)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: build handshake: %v", msl.ErrNegotiation, err)
	}
	log.Debug("sending handshake", zap.Int64("message_id", req.MessageID), zap.String("endpoint", s.cfg.Endpoint))

	status, body, err := s.tr.Post(ctx, s.cfg.Endpoint, req.Body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", msl.ErrNegotiation, err)
	}
	kr, err := msl.ParseHandshakeResponse(status, body)
	if err != nil {
		log.Warn("handshake rejected", zap.Int("status", status), zap.Error(err))
		return domain.Session{}, err
	}
	if err := kr.Expect(kx.Scheme()); err != nil {
		return domain.Session{}, err
	}

	keys, err := s.extractKeys(ctx, kx, kr, log)
	if err != nil {
		return domain.Session{}, err
	}
	sess, err := domain.NewSession(s.cfg.Identity, kr.MasterToken, keys)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", msl.ErrNegotiation, err)
	}
	log.Info("negotiated master token",
		zap.Int64("sequence_number", sess.Token.SequenceNumber),
		zap.Time("expires_at", sess.ExpiresAt()))

	if s.tokens != nil {
		if err := s.tokens.Save(ctx, sess); err != nil {
			log.Warn("could not persist master token", zap.Error(err))
		}
	}
	return sess, nil
}

// keyExchange prepares the key-exchange variant for the configured scheme.
func (s *Service) keyExchange() (domain.KeyExchange, error) {
	switch s.cfg.Scheme {
	case domain.SchemeAsymmetricWrapped:
		if s.keypairs == nil {
			return nil, fmt.Errorf("%w: no keypair source for %s", msl.ErrNegotiation, s.cfg.Scheme)
		}
		kp, _, err := s.keypairs.LoadOrCreate()
		if err != nil {
			return nil, fmt.Errorf("%w: keypair: %w", msl.ErrNegotiation, err)
		}
		return domain.AsymmetricWrapped{Keypair: kp}, nil
	case domain.SchemeWidevine:
		if s.device == nil {
			return nil, fmt.Errorf("%w: no decryption device for %s", msl.ErrNegotiation, s.cfg.Scheme)
		}
		return domain.DeviceBacked{Device: s.device}, nil
	}
	return nil, fmt.Errorf("%w: unsupported scheme %q", msl.ErrNegotiation, s.cfg.Scheme)
}

func (s *Service) requestData(ctx context.Context, kx domain.KeyExchange) (domain.KeyRequestData, error) {
	switch kx := kx.(type) {
	case domain.AsymmetricWrapped:
		der, err := kx.Keypair.PublicDER()
		if err != nil {
			return domain.KeyRequestData{}, fmt.Errorf("%w: %v", msl.ErrNegotiation, err)
		}
		return msl.AsymmetricRequestData(der), nil
	case domain.DeviceBacked:
		blob, err := kx.Device.KeyExchangeRequest(ctx, placeholderContentRef)
		if err != nil {
			return domain.KeyRequestData{}, fmt.Errorf("%w: device key request: %w", msl.ErrNegotiation, err)
		}
		return msl.WidevineRequestData(blob), nil
	}
	return domain.KeyRequestData{}, fmt.Errorf("%w: unsupported key exchange %T", msl.ErrNegotiation, kx)
}

func (s *Service) extractKeys(ctx context.Context, kx domain.KeyExchange, kr msl.KeyResponse, log *zap.Logger) (domain.SessionKeys, error) {
	switch kx := kx.(type) {
	case domain.AsymmetricWrapped:
		return msl.UnwrapAsymmetricKeys(kx.Keypair, kr.KeyData)
	case domain.DeviceBacked:
		kd, err := msl.DecodeWidevineKeyData(kr.KeyData)
		if err != nil {
			return domain.SessionKeys{}, err
		}
		if err := kx.Device.CompleteKeyExchange(ctx, kd.Response); err != nil {
			return domain.SessionKeys{}, fmt.Errorf("%w: device key response: %w", msl.ErrNegotiation, err)
		}
		keys, err := kx.Device.Keys(ctx)
		if err != nil {
			return domain.SessionKeys{}, fmt.Errorf("%w: device keys: %w", msl.ErrNegotiation, err)
		}
		enc, err := selectDeviceKey(log, keys, kd.EncryptionKeyID, domain.PermAllowEncrypt, domain.PermAllowDecrypt)
		if err != nil {
			return domain.SessionKeys{}, fmt.Errorf("encryption key: %w", err)
		}
		sign, err := selectDeviceKey(log, keys, kd.HMACKeyID, domain.PermAllowSign, domain.PermAllowSignatureVerify)
		if err != nil {
			return domain.SessionKeys{}, fmt.Errorf("signing key: %w", err)
		}
		return domain.SessionKeys{Encryption: enc, Signing: sign}, nil
	}
	return domain.SessionKeys{}, fmt.Errorf("%w: unsupported key exchange %T", msl.ErrNegotiation, kx)
}

// selectDeviceKey returns the operator session key with id that carries every
// permission in perms.
func selectDeviceKey(log *zap.Logger, keys []domain.DeviceKey, id []byte, perms ...string) ([]byte, error) {
	for _, k := range keys {
		switch {
		case !bytes.Equal(k.ID, id):
			log.Debug("skipping device key: id mismatch", zap.Binary("key_id", k.ID))
		case k.Type != domain.DeviceKeyTypeOperatorSession:
			log.Debug("skipping device key: wrong type", zap.Binary("key_id", k.ID), zap.String("type", k.Type))
		case !k.HasPermissions(perms...):
			log.Debug("skipping device key: missing permissions", zap.Binary("key_id", k.ID), zap.Strings("permissions", k.Permissions))
		case len(k.Key) == 0:
			log.Debug("skipping device key: empty key material", zap.Binary("key_id", k.ID))
		default:
			return append([]byte(nil), k.Key...), nil
		}
	}
	return nil, fmt.Errorf("%w: id %x with %v", msl.ErrKeyNotFound, id, perms)
}

// Compile-time assertion that Service implements domain.Negotiator.
var _ domain.Negotiator = (*Service)(nil)
