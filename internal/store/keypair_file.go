package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
)

var errNoPrivateKey = errors.New("store: keypair has no private key")

// KeypairFileStore keeps the client RSA keypair in <dir>/rsa.bin, as PEM or,
// with a passphrase, as a sealed blob.
type KeypairFileStore struct {
	path string
	opts Options
	kdf  scryptParams
	mu   sync.Mutex
}

// NewKeypairFileStore returns a keypair store rooted at dir.
func NewKeypairFileStore(dir string, opts Options) *KeypairFileStore {
	return &KeypairFileStore{
		path: filepath.Join(dir, KeypairFilename),
		opts: opts,
		kdf:  defaultScryptParams(),
	}
}

// Path returns the keypair file location.
func (s *KeypairFileStore) Path() string { return s.path }

// LoadKeypair returns the stored keypair. A missing file or bytes that are
// neither a sealed blob nor a PEM key are reported as absent. A sealed blob
// that cannot be opened is an error, so callers never replace it with a fresh
// key: ErrPassphraseRequired without a passphrase, ErrWrongPassphrase when
// the passphrase does not match.
func (s *KeypairFileStore) LoadKeypair() (domain.Keypair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.opts.logger().With(zap.String("path", s.path))
	b, err := readFile(s.path)
	if err != nil {
		return domain.Keypair{}, false, fmt.Errorf("store: read keypair %s: %w", s.path, err)
	}
	if b == nil {
		return domain.Keypair{}, false, nil
	}
	if isSealed(b) {
		if s.opts.Passphrase == "" {
			log.Warn("keypair is sealed but no passphrase is configured")
			return domain.Keypair{}, false, ErrPassphraseRequired
		}
		if b, err = unseal(s.opts.Passphrase, b); err != nil {
			log.Warn("keypair could not be unsealed", zap.Error(err))
			return domain.Keypair{}, false, fmt.Errorf("store: unseal keypair %s: %w", s.path, err)
		}
	}
	priv, err := crypto.ParsePrivateKey(b)
	if err != nil {
		log.Debug("keypair corrupt", zap.Error(err))
		return domain.Keypair{}, false, nil
	}
	return domain.Keypair{Private: priv}, true, nil
}

// SaveKeypair writes kp, sealing it when a passphrase is configured.
func (s *KeypairFileStore) SaveKeypair(kp domain.Keypair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kp.Private == nil {
		return errNoPrivateKey
	}
	b := crypto.MarshalPrivateKey(kp.Private)
	if s.opts.Passphrase != "" {
		var err error
		if b, err = seal(s.opts.Passphrase, b, s.kdf); err != nil {
			return err
		}
	}
	return writeFile(s.path, b, 0o600)
}

// ClearKeypair removes the keypair file.
func (s *KeypairFileStore) ClearKeypair() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.path)
}

var _ domain.KeypairStore = (*KeypairFileStore)(nil)
