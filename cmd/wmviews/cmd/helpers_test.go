package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty directory and clears the
// WMVIEWS_* overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"WMVIEWS_VIEW", "WMVIEWS_WORKERS", "WMVIEWS_CACHE_SIZE", "WMVIEWS_FORMAT",
		"WMVIEWS_OUTPUT", "WMVIEWS_DEBOUNCE", "WMVIEWS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeInput(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// syncBuffer is a bytes.Buffer safe for a command writing from another
// goroutine while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const (
	jobA1 = `{"_id":"a1","id":"job-a1","type":"jobsummary","workflow":"wf1","state":"success","exitcode":0,"site":"T1_US_FNAL","errors":{}}`
	jobB1 = `{"_id":"b1","id":"job-b1","type":"jobsummary","workflow":"wf1","state":"jobfailed","exitcode":8001,"site":"T2_CH_CERN","errors":{"cmsRun1":{"out":{"type":"Fatal"},"log":{"type":"Abort"}}}}`
	other = `{"_id":"r1","type":"request","workflow":"wf1"}`
)
