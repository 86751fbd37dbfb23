package store

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"mslclient/internal/domain"
)

// TokenFileStore keeps the negotiated session in <dir>/msl.json.
type TokenFileStore struct {
	path     string
	identity string
	opts     Options
	mu       sync.Mutex
}

// NewTokenFileStore returns a store for identity's session rooted at dir.
func NewTokenFileStore(dir, identity string, opts Options) *TokenFileStore {
	return &TokenFileStore{
		path:     filepath.Join(dir, TokenFilename),
		identity: identity,
		opts:     opts,
	}
}

// Path returns the cache file location.
func (s *TokenFileStore) Path() string { return s.path }

// Load returns the cached session if it is present, intact and valid for at
// least the configured margin.
func (s *TokenFileStore) Load(ctx context.Context) (domain.Session, bool, error) {
	var b []byte
	err := s.locked(ctx, func() error {
		var err error
		b, err = readFile(s.path)
		return err
	})
	if ctx.Err() != nil {
		return domain.Session{}, false, ctx.Err()
	}
	log := s.opts.logger().With(zap.String("path", s.path))
	if err != nil {
		log.Debug("token cache unreadable", zap.Error(err))
		return domain.Session{}, false, nil
	}
	if b == nil {
		log.Debug("token cache missing")
		return domain.Session{}, false, nil
	}
	sess, err := decodeSession(s.identity, b)
	if err != nil {
		log.Debug("token cache corrupt", zap.Error(err))
		return domain.Session{}, false, nil
	}
	if !sess.ValidAt(s.opts.now(), s.opts.margin()) {
		log.Debug("cached master token too close to expiry",
			zap.Time("expires_at", sess.ExpiresAt()),
			zap.Duration("margin", s.opts.margin()))
		return domain.Session{}, false, nil
	}
	return sess, true, nil
}

// Save overwrites the cache with sess.
func (s *TokenFileStore) Save(ctx context.Context, sess domain.Session) error {
	b, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.locked(ctx, func() error { return writeFile(s.path, b, 0o600) })
}

// Clear removes the cache file.
func (s *TokenFileStore) Clear(ctx context.Context) error {
	return s.locked(ctx, func() error { return removeFile(s.path) })
}

func (s *TokenFileStore) locked(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Lock {
		return fn()
	}
	return withFileLock(ctx, s.path, fn)
}

var _ domain.TokenStore = (*TokenFileStore)(nil)
