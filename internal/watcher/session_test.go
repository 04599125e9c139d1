package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmwm/wmviews/internal/runner"
	"github.com/dmwm/wmviews/internal/view"
)

var testInclude = []string{"**/*.json", "**/*.ndjson"}

func jobJSON(id, state string) string {
	return fmt.Sprintf(`{"_id":%q,"type":"jobsummary","workflow":"wf","state":%q,"exitcode":0,"site":"T1","errors":{}}`, id, state)
}

func writeDump(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func newSession(t *testing.T, root string, logs *bytes.Buffer) *Session {
	t.Helper()
	logger := quietLogger(logs)
	r := runner.New(view.JobsByStatusWorkflow{}, runner.WithLogger(logger))
	return NewSession(root, r, testInclude, []string{"archive/**"}, logger)
}

func ids(rows []view.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID.String()
	}
	return out
}

func TestSession_Load(t *testing.T) {
	// Given: dumps in two files plus an excluded one
	root := t.TempDir()
	writeDump(t, root, "b.ndjson", jobJSON("b1", "success")+"\n"+jobJSON("b2", "jobfailed")+"\n")
	writeDump(t, root, "a.json", "["+jobJSON("a1", "success")+`,{"_id":"req","type":"request"}]`)
	writeDump(t, root, "archive/old.json", jobJSON("old", "success"))
	s := newSession(t, root, &bytes.Buffer{})

	// When: loading
	u, err := s.Load(context.Background())

	// Then: rows are grouped by file in path order
	require.NoError(t, err)
	assert.Equal(t, view.JobsByStatusWorkflowName, u.View)
	assert.Equal(t, []string{"a1", "b1", "b2"}, ids(u.Rows))
	assert.Equal(t, 2, u.Files)
	assert.Equal(t, []string{"a.json", "b.ndjson"}, s.Files())
	assert.Equal(t, 4, u.Stats.Scanned)
	assert.Equal(t, 1, u.Stats.Skipped)
	assert.Empty(t, u.Changed)
	assert.Empty(t, u.Removed)
}

func TestSession_Load_SkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	writeDump(t, root, "good.json", jobJSON("g", "success"))
	writeDump(t, root, "bad.json", `{"_id":`)
	var logs bytes.Buffer
	s := newSession(t, root, &logs)

	u, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, ids(u.Rows))
	assert.Contains(t, logs.String(), "skipping unreadable file")
}

func TestSession_Load_MissingRoot(t *testing.T) {
	s := newSession(t, filepath.Join(t.TempDir(), "missing"), &bytes.Buffer{})

	_, err := s.Load(context.Background())

	assert.Error(t, err)
}

func TestSession_Apply(t *testing.T) {
	// Given: a loaded session
	root := t.TempDir()
	writeDump(t, root, "a.json", jobJSON("a1", "success"))
	writeDump(t, root, "b.json", jobJSON("b1", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	// When: one file changes, one is removed and one is added
	writeDump(t, root, "a.json", "["+jobJSON("a1", "jobfailed")+","+jobJSON("a2", "success")+"]")
	require.NoError(t, os.Remove(filepath.Join(root, "b.json")))
	writeDump(t, root, "c/c.json", jobJSON("c1", "success"))

	u, err := s.Apply(context.Background(), []FileEvent{
		ev("a.json", OpModify),
		ev("b.json", OpDelete),
		ev("c/c.json", OpCreate),
	})

	// Then: only the touched files change
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "c1"}, ids(u.Rows))
	assert.Equal(t, []string{"a.json", "c/c.json"}, u.Changed)
	assert.Equal(t, []string{"b.json"}, u.Removed)
	assert.Equal(t, 3, u.Stats.Scanned)
	assert.Equal(t, u.Rows, s.Rows())
}

func TestSession_Apply_DirectoryDeleteDropsFilesBelow(t *testing.T) {
	// Given: files inside a directory and a sibling sharing its prefix
	root := t.TempDir()
	writeDump(t, root, "sub/inner.json", jobJSON("inner", "success"))
	writeDump(t, root, "sub/deeper/x.json", jobJSON("x", "success"))
	writeDump(t, root, "subway.json", jobJSON("subway", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	// When: the directory is reported deleted
	require.NoError(t, os.RemoveAll(filepath.Join(root, "sub")))
	u, err := s.Apply(context.Background(), []FileEvent{ev("sub", OpDelete)})

	// Then: every file below it is dropped and the sibling stays
	require.NoError(t, err)
	assert.Equal(t, []string{"subway"}, ids(u.Rows))
	assert.Equal(t, []string{"sub/deeper/x.json", "sub/inner.json"}, u.Removed)
	assert.Equal(t, []string{"subway.json"}, s.Files())
}

func TestSession_Apply_KeepsRowsOfUnreadableFile(t *testing.T) {
	// Given: a file that loaded fine
	root := t.TempDir()
	writeDump(t, root, "a.json", jobJSON("a1", "success"))
	var logs bytes.Buffer
	s := newSession(t, root, &logs)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	// When: it is caught half-written
	writeDump(t, root, "a.json", `[{"_id":"a1"`)
	u, err := s.Apply(context.Background(), []FileEvent{ev("a.json", OpModify)})

	// Then: its previous rows stay and a warning is logged
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, ids(u.Rows))
	assert.Empty(t, u.Changed)
	assert.Contains(t, logs.String(), "keeping previous rows")
}

func TestSession_Apply_VanishedFileIsRemoved(t *testing.T) {
	root := t.TempDir()
	writeDump(t, root, "a.json", jobJSON("a1", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "a.json")))

	u, err := s.Apply(context.Background(), []FileEvent{ev("a.json", OpModify)})

	require.NoError(t, err)
	assert.Empty(t, u.Rows)
	assert.Equal(t, []string{"a.json"}, u.Removed)
}

func TestSession_Watch(t *testing.T) {
	// Given: a session over a directory with one dump
	root := t.TempDir()
	writeDump(t, root, "a.json", jobJSON("a1", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	w, err := New(Options{DebounceWindow: 30 * time.Millisecond, Include: testInclude})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	updates := make(chan Update, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, w, func(u Update) error {
			updates <- u
			return nil
		})
	}()

	// Then: the initial load is reported
	select {
	case u := <-updates:
		assert.Equal(t, []string{"a1"}, ids(u.Rows))
	case <-time.After(2 * time.Second):
		t.Fatal("no initial update")
	}

	// When: a new dump appears
	require.Eventually(t, func() bool { return w.RootPath() != "" }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	writeDump(t, root, "b.json", jobJSON("b1", "success"))

	// Then: an update with both files follows
	select {
	case u := <-updates:
		assert.Equal(t, []string{"a1", "b1"}, ids(u.Rows))
		assert.Equal(t, []string{"b.json"}, u.Changed)
	case <-time.After(3 * time.Second):
		t.Fatal("no update after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestSession_Watch_DirectoryMovedOut(t *testing.T) {
	// Given: a watch over a file and a subdirectory
	root := t.TempDir()
	writeDump(t, root, "top.json", jobJSON("top", "success"))
	writeDump(t, root, "sub/inner.json", jobJSON("inner", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	w, err := New(Options{DebounceWindow: 30 * time.Millisecond, Include: testInclude})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	updates := make(chan Update, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = s.Watch(ctx, w, func(u Update) error {
			updates <- u
			return nil
		})
	}()

	select {
	case u := <-updates:
		require.Equal(t, []string{"inner", "top"}, ids(u.Rows))
	case <-time.After(2 * time.Second):
		t.Fatal("no initial update")
	}
	require.Eventually(t, func() bool { return w.RootPath() != "" }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// When: the subdirectory is moved out of the tree
	require.NoError(t, os.Rename(filepath.Join(root, "sub"), filepath.Join(t.TempDir(), "sub")))

	// Then: its rows disappear
	select {
	case u := <-updates:
		assert.Equal(t, []string{"top"}, ids(u.Rows))
		assert.Equal(t, []string{"sub/inner.json"}, u.Removed)
		assert.Equal(t, []string{"top.json"}, s.Files())
	case <-time.After(3 * time.Second):
		t.Fatal("no update after move")
	}
}

func TestSession_Watch_CallbackErrorStops(t *testing.T) {
	root := t.TempDir()
	writeDump(t, root, "a.json", jobJSON("a1", "success"))
	s := newSession(t, root, &bytes.Buffer{})
	w, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()
	boom := errors.New("sink closed")

	err = s.Watch(context.Background(), w, func(Update) error { return boom })

	assert.ErrorIs(t, err, boom)
}
