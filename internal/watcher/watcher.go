package watcher

import (
	"time"

	"github.com/dmwm/wmviews/internal/source"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or moved away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to one input file.
type FileEvent struct {
	// Path is slash-separated and relative to the watched root.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 200ms
	DebounceWindow time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 100
	EventBufferSize int

	// Include and Exclude are doublestar patterns, relative to the root.
	// Only matching files produce events. Directories matching Exclude are
	// not watched at all.
	Include []string
	Exclude []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		EventBufferSize: 100,
		Include:         []string{"**/*.json", "**/*.ndjson", "**/*.jsonl"},
		Exclude:         []string{".git/**"},
	}
}

// Validate rejects malformed glob patterns.
func (o Options) Validate() error {
	if err := source.ValidatePatterns(o.Include); err != nil {
		return err
	}
	return source.ValidatePatterns(o.Exclude)
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Include) == 0 {
		o.Include = defaults.Include
	}
	return o
}
