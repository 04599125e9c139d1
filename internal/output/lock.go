package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

// LockSuffix is appended to an output path to name its lock file.
const LockSuffix = ".lock"

// FileLock is a cross-process lock guarding one output file, so two
// wmviews processes never interleave writes to the same rows file.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock returns the lock for target. The lock file is target + ".lock".
func NewFileLock(target string) *FileLock {
	lockPath := target + LockSuffix
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking. A lock held by
// another process is reported as an ERR_203_OUTPUT_LOCKED error, which is
// retryable.
func (l *FileLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return verrors.New(verrors.ErrCodeWriteFailed, "failed to create lock directory", err).
			WithDetail("lock", l.path)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return verrors.New(verrors.ErrCodeWriteFailed, "failed to acquire lock "+l.path, err).
			WithDetail("lock", l.path)
	}
	if !acquired {
		return verrors.New(verrors.ErrCodeOutputLocked, "output is locked by another process: "+l.path, nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other wmviews process writing this file, or choose a different --output")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. It is safe to call on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
