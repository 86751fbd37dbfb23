package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mslclient/internal/config"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
	identitysvc "mslclient/internal/services/identity"
	messagesvc "mslclient/internal/services/message"
	playbacksvc "mslclient/internal/services/playback"
	sessionsvc "mslclient/internal/services/session"
	"mslclient/internal/store"
	"mslclient/internal/transport"
)

var newRedisClient = redis.NewClient

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config    *config.Config
	Log       *zap.Logger
	Tokens    domain.TokenStore
	Keypairs  *store.KeypairFileStore
	Identity  *identitysvc.Service
	Transport *transport.HTTP
	Sessions  *sessionsvc.Service
	Messages  *messagesvc.Service
	Playback  *playbacksvc.Service

	closers []func() error
}

// NewWire constructs the dependency graph from cfg. device backs the
// widevine scheme and may be nil otherwise.
func NewWire(cfg *config.Config, log *zap.Logger, device domain.Device) (*Wire, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Wire{Config: cfg, Log: log}

	verify, err := msl.ParseVerifyMode(cfg.MSL.Verify)
	if err != nil {
		return nil, err
	}
	scheme := domain.SchemeAsymmetricWrapped
	if cfg.MSL.Scheme == config.SchemeWidevine {
		scheme = domain.SchemeWidevine
	}

	// Cache validity is judged against the time the graph was built, not
	// against each lookup.
	started := time.Now()
	opts := store.Options{
		Margin:     cfg.Margin(),
		Now:        func() time.Time { return started },
		Lock:       cfg.Cache.Lock,
		Passphrase: cfg.Cache.Passphrase,
		Log:        log.Named("store"),
	}
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		rdb := newRedisClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		w.closers = append(w.closers, rdb.Close)
		w.Tokens = store.NewTokenRedisStore(rdb, cfg.MSL.ESN, opts)
	default:
		w.Tokens = store.NewTokenFileStore(cfg.Cache.Dir, cfg.MSL.ESN, opts)
	}
	w.Keypairs = store.NewKeypairFileStore(cfg.Cache.Dir, opts)
	w.Identity = identitysvc.New(w.Keypairs, log.Named("identity"))

	w.Transport, err = transport.NewHTTP(transport.Options{
		Timeout:   cfg.Timeout(),
		UserAgent: cfg.HTTP.UserAgent,
		Proxy:     cfg.HTTP.Proxy,
		Log:       log.Named("http"),
	})
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	builder := &msl.Builder{
		Recipient: cfg.MSL.Recipient,
		Languages: cfg.MSL.Languages,
	}
	if cfg.Auth.Email != "" {
		builder.UserAuth = &domain.EmailPassword{Email: cfg.Auth.Email, Password: cfg.Auth.Password}
	}

	var keypairs domain.KeypairService
	if scheme == domain.SchemeAsymmetricWrapped {
		keypairs = w.Identity
	}
	w.Sessions = sessionsvc.New(sessionsvc.Config{
		Identity: cfg.MSL.ESN,
		Endpoint: cfg.Endpoints.Manifest,
		Scheme:   scheme,
	}, w.Tokens, keypairs, device, w.Transport, builder, log.Named("session"))

	w.Messages = messagesvc.New(w.Transport, builder, msl.Parser{Verify: verify}, log.Named("message"))
	w.Playback = playbacksvc.New(w.Messages, playbacksvc.Config{
		ManifestURL: cfg.Endpoints.Manifest,
		LicenseURL:  cfg.Endpoints.License,
		Languages:   cfg.MSL.Languages,
	}, log.Named("playback"))

	log.Debug("wired",
		zap.String("esn", cfg.MSL.ESN),
		zap.Stringer("scheme", scheme),
		zap.Stringer("verify", verify),
		zap.String("cache_backend", cfg.Cache.Backend),
	)
	return w, nil
}

// Close releases long-lived clients.
func (w *Wire) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("app: close: %w", errors.Join(errs...))
	}
	return nil
}
