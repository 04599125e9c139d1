package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.wmviews/logs, or a directory under the system
// temp dir when the home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wmviews", "logs")
	}
	return filepath.Join(home, ".wmviews", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "wmviews.log")
}

// EnsureLogDir creates dir (and parents) if it does not exist.
func EnsureLogDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
