package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mslclient/internal/domain"
)

// RedisClient is the subset of redis.Cmdable the token store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TokenRedisStore keeps the negotiated session in Redis under
// msl:token:<identity>. Entries expire on their own once the token is within
// the margin of its expiry.
type TokenRedisStore struct {
	rdb      RedisClient
	identity string
	opts     Options
}

// NewTokenRedisStore returns a Redis-backed token store.
func NewTokenRedisStore(rdb RedisClient, identity string, opts Options) *TokenRedisStore {
	return &TokenRedisStore{rdb: rdb, identity: identity, opts: opts}
}

// Key returns the Redis key holding the session.
func (s *TokenRedisStore) Key() string { return "msl:token:" + s.identity }

// Load returns the session stored under Key. A missing key, a redis error or
// a document that does not decode is reported as absent, as is a token
// inside the margin. Load only fails when ctx is done.
func (s *TokenRedisStore) Load(ctx context.Context) (domain.Session, bool, error) {
	log := s.opts.logger().With(zap.String("key", s.Key()))
	val, err := s.rdb.Get(ctx, s.Key()).Bytes()
	if ctx.Err() != nil {
		return domain.Session{}, false, ctx.Err()
	}
	if errors.Is(err, redis.Nil) {
		log.Debug("token cache missing")
		return domain.Session{}, false, nil
	}
	if err != nil {
		log.Warn("token cache unavailable", zap.Error(err))
		return domain.Session{}, false, nil
	}
	sess, err := decodeSession(s.identity, val)
	if err != nil {
		log.Debug("token cache corrupt", zap.Error(err))
		return domain.Session{}, false, nil
	}
	if !sess.ValidAt(s.opts.now(), s.opts.margin()) {
		log.Debug("cached master token too close to expiry", zap.Time("expires_at", sess.ExpiresAt()))
		return domain.Session{}, false, nil
	}
	return sess, true, nil
}

// Save stores sess with a TTL that ends where Load would stop accepting it.
// A session already inside the margin is not stored.
func (s *TokenRedisStore) Save(ctx context.Context, sess domain.Session) error {
	ttl := ttlFor(sess, s.opts.now(), s.opts.margin())
	if ttl <= 0 {
		s.opts.logger().Debug("not caching master token inside expiry margin", zap.String("key", s.Key()))
		return nil
	}
	b, err := encodeSession(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.Key(), b, ttl).Err()
}

// Clear deletes the stored session.
func (s *TokenRedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.Key()).Err()
}

var _ domain.TokenStore = (*TokenRedisStore)(nil)
var _ RedisClient = (*redis.Client)(nil)

// ttlFor is how long a freshly saved session stays worth loading.
func ttlFor(sess domain.Session, now time.Time, margin time.Duration) time.Duration {
	return sess.ExpiresAt().Sub(now) - margin
}
