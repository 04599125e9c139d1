package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 200*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 100, opts.EventBufferSize)
	assert.Contains(t, opts.Include, "**/*.json")
	assert.Contains(t, opts.Exclude, ".git/**")
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	err := Options{Include: []string{"[*.json"}}.Validate()
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeInvalidInput, verrors.GetCode(err))

	err = Options{Include: []string{"*.json"}, Exclude: []string{"tmp/[**"}}.Validate()
	assert.Error(t, err)
}

func TestOptions_WithDefaults(t *testing.T) {
	// Given: options with only an exclude set
	opts := Options{Exclude: []string{"archive/**"}}

	// When: applying defaults
	got := opts.WithDefaults()

	// Then: zero values are filled, explicit ones kept
	assert.Equal(t, 200*time.Millisecond, got.DebounceWindow)
	assert.Equal(t, 100, got.EventBufferSize)
	assert.Equal(t, DefaultOptions().Include, got.Include)
	assert.Equal(t, []string{"archive/**"}, got.Exclude)

	custom := Options{DebounceWindow: time.Second, EventBufferSize: 5, Include: []string{"*.ndjson"}}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
	assert.Equal(t, 5, custom.EventBufferSize)
	assert.Equal(t, []string{"*.ndjson"}, custom.Include)
}
