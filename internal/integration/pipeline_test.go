package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/output"
	"github.com/dmwm/wmviews/internal/runner"
	"github.com/dmwm/wmviews/internal/source"
	"github.com/dmwm/wmviews/internal/view"
	"github.com/dmwm/wmviews/internal/watcher"
)

// Pipeline Integration Tests - discovery, mapping and output wired
// together the way the CLI does it.

var include = []string{"**/*.json", "**/*.ndjson"}

func jobSummary(id, state string, exit int, errs string) string {
	return fmt.Sprintf(`{"_id":%q,"id":"job/%s","type":"jobsummary","workflow":"wf","state":%q,"exitcode":%d,"site":"T1_US_FNAL","errors":%s}`,
		id, id, state, exit, errs)
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func readAll(t *testing.T, root string) []source.Raw {
	t.Helper()
	files, err := source.Discover(root, include, []string{"**/_design/**"})
	require.NoError(t, err)
	var docs []source.Raw
	for _, f := range files {
		got, err := source.ReadFile(f)
		require.NoError(t, err)
		docs = append(docs, got...)
	}
	return docs
}

func TestPipeline_AllDocsExportToViewResponse(t *testing.T) {
	// Given: an _all_docs?include_docs=true export and an ndjson dump
	root := t.TempDir()
	write(t, root, "export.json", `{"total_rows":3,"offset":0,"rows":[
		{"id":"_design/WMStats","key":"_design/WMStats","value":{"rev":"1-a"},"doc":{"_id":"_design/WMStats","language":"javascript"}},
		{"id":"j1","key":"j1","value":{"rev":"1-b"},"doc":`+jobSummary("j1", "jobfailed", 8001, `{"cmsRun1":{"out":{"type":"Fatal"}},"stageOut1":{"log":{"type":"Abort"}}}`)+`},
		{"id":"r1","key":"r1","value":{"rev":"1-c"},"doc":{"_id":"r1","type":"reqmgr_request"}}
	]}`)
	write(t, root, "more.ndjson", jobSummary("j2", "success", 0, `null`)+"\n"+jobSummary("j3", "jobfailed", 50664, `{"cmsRun1":{"a":{"type":"Z"},"b":{"type":"Z"},"c":{}}}`)+"\n")

	// When: the documents are mapped and written as a view response
	r := runner.New(view.JobsByStatusWorkflow{}, runner.WithWorkers(4), runner.WithLogger(quiet()))
	res, err := r.Run(context.Background(), readAll(t, root))
	require.NoError(t, err)
	out := filepath.Join(root, "out", "rows.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
	require.NoError(t, output.WriteFile(context.Background(), out, output.FormatJSON, res.Rows))

	// Then: the file is a view response in input order with sorted error labels
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_rows":3,"offset":0,"rows":[
		{"id":"j1","key":["wf","jobfailed",8001,"T1_US_FNAL",["Abort","Fatal"]],"value":{"id":"job/j1"}},
		{"id":"j2","key":["wf","success",0,"T1_US_FNAL",[]],"value":{"id":"job/j2"}},
		{"id":"j3","key":["wf","jobfailed",50664,"T1_US_FNAL",["Z","Z"]],"value":{"id":"job/j3"}}
	]}`, string(data))
	assert.Equal(t, 4, res.Stats.Scanned)
	assert.Equal(t, 1, res.Stats.Skipped)
}

func TestPipeline_NDJSONOutputReadsBackLineByLine(t *testing.T) {
	root := t.TempDir()
	var dump strings.Builder
	for i := range 50 {
		dump.WriteString(jobSummary(fmt.Sprintf("j%02d", i), "success", 0, `{}`) + "\n")
	}
	write(t, root, "jobs.ndjson", dump.String())

	r := runner.New(view.JobsByStatusWorkflow{}, runner.WithWorkers(8), runner.WithLogger(quiet()))
	res, err := r.Run(context.Background(), readAll(t, root))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, output.Encode(&buf, output.FormatNDJSON, res.Rows))

	sc := bufio.NewScanner(&buf)
	i := 0
	for sc.Scan() {
		var row struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		assert.Equal(t, fmt.Sprintf("j%02d", i), row.ID)
		i++
	}
	assert.Equal(t, 50, i)
}

func TestPipeline_WatchKeepsLockedOutputCurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched directory whose rows are written to a locked file
	root := t.TempDir()
	outDir := t.TempDir()
	write(t, root, "a.json", jobSummary("a", "success", 0, `{}`))
	out := filepath.Join(outDir, "rows.ndjson")

	r := runner.New(view.JobsByStatusWorkflow{}, runner.WithLogger(quiet()))
	session := watcher.NewSession(root, r, include, nil, quiet())
	w, err := watcher.New(watcher.Options{DebounceWindow: 50 * time.Millisecond, Include: include})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	updates := make(chan int, 10)
	go func() {
		_ = session.Watch(ctx, w, func(u watcher.Update) error {
			if err := output.WriteFile(ctx, out, output.FormatNDJSON, u.Rows); err != nil {
				return err
			}
			updates <- len(u.Rows)
			return nil
		})
	}()

	waitRows := func(want int) {
		t.Helper()
		for {
			select {
			case n := <-updates:
				if n == want {
					return
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for %d rows", want)
			}
		}
	}
	waitRows(1)
	require.Eventually(t, func() bool { return w.RootPath() != "" }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	// When: a dump is added and then the first one removed
	write(t, root, "b.ndjson", jobSummary("b1", "jobfailed", 1, `{}`)+"\n"+jobSummary("b2", "success", 0, `{}`)+"\n")
	waitRows(3)
	require.NoError(t, os.Remove(filepath.Join(root, "a.json")))
	waitRows(2)

	// Then: the output file holds only b's rows
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"b1"`)
	assert.Contains(t, lines[1], `"id":"b2"`)

	// And: another writer cannot take the lock while one holds it
	lock := output.NewFileLock(out)
	require.NoError(t, lock.TryLock())
	defer func() { _ = lock.Unlock() }()
	err = output.WriteFileWithRetry(ctx, out, output.FormatNDJSON, nil, verrors.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeOutputLocked, verrors.GetCode(err))
}
