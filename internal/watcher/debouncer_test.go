package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func waitBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(ev("jobs.json", OpCreate))

	// Then: the event passes through after the window
	events := waitBatch(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "jobs.json", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		noEmit bool
	}{
		{name: "modify burst", ops: []Operation{OpModify, OpModify, OpModify}, want: OpModify},
		{name: "create then modify", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "modify then delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "delete then create", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "delete then modify", ops: []Operation{OpDelete, OpModify}, want: OpModify},
		{name: "create then delete", ops: []Operation{OpCreate, OpDelete}, noEmit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			// When: the operations arrive inside one window, followed by a
			// marker on another path
			for _, op := range tt.ops {
				d.Add(ev("jobs.json", op))
			}
			d.Add(ev("zz-marker.json", OpModify))

			// Then: the batch holds the coalesced operation, or nothing
			events := waitBatch(t, d)
			if tt.noEmit {
				require.Len(t, events, 1)
				assert.Equal(t, "zz-marker.json", events[0].Path)
				return
			}
			require.Len(t, events, 2)
			assert.Equal(t, "jobs.json", events[0].Path)
			assert.Equal(t, tt.want, events[0].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(ev("c.json", OpCreate))
	d.Add(ev("a.json", OpModify))
	d.Add(ev("b/x.ndjson", OpDelete))

	events := waitBatch(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, "a.json", events[0].Path)
	assert.Equal(t, "b/x.ndjson", events[1].Path)
	assert.Equal(t, "c.json", events[2].Path)
}

func TestDebouncer_WindowRestartsOnEachEvent(t *testing.T) {
	// Given: a window longer than the gap between writes
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	// When: writes keep arriving
	for range 4 {
		d.Add(ev("jobs.json", OpModify))
		time.Sleep(30 * time.Millisecond)
	}

	// Then: only one batch is emitted once they stop
	events := waitBatch(t, d)
	assert.Len(t, events, 1)
	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch: %v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	d.Stop()
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok, "output channel should be closed")

	// Adding after stop is ignored
	d.Add(ev("jobs.json", OpCreate))
}
