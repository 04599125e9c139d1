package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

func TestFileLock_LockUnlock(t *testing.T) {
	// Given: a lock for an output file in a directory that doesn't exist yet
	target := filepath.Join(t.TempDir(), "out", "rows.json")
	lock := NewFileLock(target)

	// When: locking
	require.NoError(t, lock.TryLock())

	// Then: the lock file sits next to the target
	assert.True(t, lock.IsLocked())
	assert.Equal(t, target+".lock", lock.Path())
	_, err := os.Stat(lock.Path())
	assert.NoError(t, err)

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())
	assert.NoError(t, lock.Unlock(), "second unlock is a no-op")
}

func TestFileLock_ContendedTryLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "rows.json")
	holder := NewFileLock(target)
	require.NoError(t, holder.TryLock())
	defer func() { _ = holder.Unlock() }()

	// When: a second lock on the same file is attempted
	err := NewFileLock(target).TryLock()

	// Then: it reports a retryable locked error
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeOutputLocked, verrors.GetCode(err))
	assert.True(t, verrors.IsRetryable(err))
}
