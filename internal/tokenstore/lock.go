package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout is the maximum time to wait for the token file lock.
const LockTimeout = 2 * time.Second

// ErrLocked is returned when another process holds the token file lock
// past LockTimeout.
var ErrLocked = errors.New("token store is locked by another process")

// withLock runs fn while holding an exclusive lock on the store directory.
// The token file is never read or written unlocked; a timeout is an error.
func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	fl := flock.New(filepath.Join(s.dir, ".tokens.lock"))

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrLocked
		}
		return fmt.Errorf("lock token store: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}
