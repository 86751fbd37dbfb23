package store

import (
	"time"

	"go.uber.org/zap"

	"mslclient/internal/domain"
)

const (
	TokenFilename   = "msl.json"
	KeypairFilename = "rsa.bin"
)

// Options tune every store in the package. The zero value is usable.
type Options struct {
	// Margin is the minimum remaining token lifetime for a cached session
	// to be returned. Zero means domain.DefaultTokenMargin.
	Margin time.Duration
	// Now is the reference clock for expiry checks.
	Now func() time.Time
	// Lock serialises file access across processes with an advisory lock.
	Lock bool
	// Passphrase, when set, seals the keypair at rest.
	Passphrase string
	Log        *zap.Logger
}

func (o Options) margin() time.Duration {
	if o.Margin <= 0 {
		return domain.DefaultTokenMargin
	}
	return o.Margin
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) logger() *zap.Logger {
	if o.Log != nil {
		return o.Log
	}
	return zap.NewNop()
}
