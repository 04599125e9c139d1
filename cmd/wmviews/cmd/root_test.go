package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"map", "watch", "views", "config", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRootCmd_DebugWritesLogFile(t *testing.T) {
	// Given: a home directory without logs
	isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	// When: running any command with --debug
	_, _, err := execute(t, "", "--debug", "--config-dir", t.TempDir(), "views")

	// Then: a JSON log file is created under ~/.wmviews/logs
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(home, ".wmviews", "logs", "wmviews.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Debug logging enabled"`)
	assert.Contains(t, string(data), `"msg":"Debug logging stopped"`)
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")
	in := writeInput(t, dir, "jobs.json", jobA1)

	_, _, err := execute(t, "", "--profile-cpu", cpu, "--profile-mem", heap,
		"--config-dir", dir, "map", "-q", in)

	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestRootCmd_FailingCommandStillStops(t *testing.T) {
	// Given: debug logging and a heap profile
	isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	heap := filepath.Join(dir, "heap.prof")

	// When: the command fails
	_, _, err := execute(t, "", "--debug", "--profile-mem", heap,
		"--config-dir", dir, "map", filepath.Join(dir, "missing.json"))

	// Then: the profile is written and the log file is closed out
	require.Error(t, err)
	assert.FileExists(t, heap)
	data, err := os.ReadFile(filepath.Join(home, ".wmviews", "logs", "wmviews.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Debug logging stopped"`)
}

func TestRootCmd_BrokenConfigDoesNotBlockVersion(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeInput(t, dir, ".wmviews.yaml", "output: [unclosed\n")

	stdout, _, err := execute(t, "", "--config-dir", dir, "version", "--short")

	require.NoError(t, err)
	assert.NotEmpty(t, stdout)
}
