package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// withFileLock runs fn while holding an advisory lock on path+".lock".
func withFileLock(ctx context.Context, path string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", fl.Path())
	}
	defer func() { _ = fl.Unlock() }()
	return fn()
}
