package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/view"
)

// WriteFile replaces the file at path with rows encoded in format f.
//
// The rows are written to a temporary file in the same directory, synced
// and renamed over path while path's lock is held, so readers see either
// the old rows or the new ones. A lock held elsewhere is retried with
// errors.DefaultRetryConfig before giving up.
func WriteFile(ctx context.Context, path string, f Format, rows []view.Row) error {
	return WriteFileWithRetry(ctx, path, f, rows, verrors.DefaultRetryConfig())
}

// WriteFileWithRetry is WriteFile with an explicit retry policy for the lock.
func WriteFileWithRetry(ctx context.Context, path string, f Format, rows []view.Row, retry verrors.RetryConfig) error {
	lock := NewFileLock(path)
	if err := verrors.Retry(ctx, retry, lock.TryLock); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return writeFailed(path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	// Plain styles: files never get terminal colours
	if err := EncodeWithStyles(tmp, f, rows, NoColorStyles()); err != nil {
		_ = tmp.Close()
		if verrors.GetCode(err) == verrors.ErrCodeUnknownFormat {
			return err
		}
		return writeFailed(path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return writeFailed(path, err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed(path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return writeFailed(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return writeFailed(path, err)
	}
	committed = true
	return nil
}

func writeFailed(path string, err error) error {
	return verrors.New(verrors.ErrCodeWriteFailed, fmt.Sprintf("failed to write %s", path), err).
		WithDetail("path", path)
}
