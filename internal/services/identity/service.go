package identity

import (
	"fmt"

	"go.uber.org/zap"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

// Service reuses or creates the client keypair using a backing store.
type Service struct {
	store    domain.KeypairStore
	log      *zap.Logger
	generate func() (domain.Keypair, error)
}

// New returns an identity service backed by the given store.
func New(s domain.KeypairStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, log: log, generate: generateKeypair}
}

// LoadOrCreate returns the stored keypair, generating and saving one when the
// store has none. created reports whether a new key was made.
func (s *Service) LoadOrCreate() (domain.Keypair, bool, error) {
	kp, ok, err := s.store.LoadKeypair()
	if err != nil {
		return domain.Keypair{}, false, err
	}
	if ok {
		s.log.Debug("reusing client keypair", zap.String("fingerprint", Fingerprint(kp)))
		return kp, false, nil
	}

	kp, err = s.generate()
	if err != nil {
		return domain.Keypair{}, false, fmt.Errorf("generate keypair: %w", err)
	}
	if err := s.store.SaveKeypair(kp); err != nil {
		return domain.Keypair{}, false, fmt.Errorf("save keypair: %w", err)
	}
	s.log.Info("generated client keypair", zap.String("fingerprint", Fingerprint(kp)))
	return kp, true, nil
}

// Fingerprint returns a short fingerprint of the keypair's public half.
func Fingerprint(kp domain.Keypair) string {
	der, err := kp.PublicDER()
	if err != nil {
		return ""
	}
	return crypto.Fingerprint(der)
}

func generateKeypair() (domain.Keypair, error) {
	priv, err := crypto.GenerateKeypair()
	if err != nil {
		return domain.Keypair{}, err
	}
	return domain.Keypair{Private: priv}, nil
}

// Compile-time assertion that Service implements domain.KeypairService.
var _ domain.KeypairService = (*Service)(nil)
