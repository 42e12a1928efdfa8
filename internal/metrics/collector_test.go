package metrics

import (
	"testing"
	"time"
)

func TestCollectorRecordsCounters(t *testing.T) {
	c := NewCollector(true)
	c.RecordCall("scratchpad", "toggle")
	c.RecordCall("scratchpad", "toggle")
	c.RecordError("scratchpad", "toggle")
	c.RecordCall("circle", "next")
	c.RecordEvent("new")
	c.RecordEvent("new")
	c.RecordEvent("close")
	snap := c.Snapshot()
	if !snap.Enabled {
		t.Fatalf("expected snapshot to be enabled")
	}
	if snap.Totals.Calls != 3 || snap.Totals.Errors != 1 || snap.Totals.Events != 3 {
		t.Fatalf("unexpected totals: %#v", snap.Totals)
	}
	if len(snap.Verbs) != 2 {
		t.Fatalf("expected two verbs in snapshot, got %d", len(snap.Verbs))
	}
	first := snap.Verbs[0]
	if first.Module != "circle" || first.Verb != "next" {
		t.Fatalf("expected verbs sorted by module, got %#v", first)
	}
	toggle := snap.Verbs[1]
	if toggle.Calls != 2 || toggle.Errors != 1 {
		t.Fatalf("unexpected verb counters: %#v", toggle)
	}
	if toggle.LastCalled.IsZero() || toggle.LastErrored.IsZero() {
		t.Fatalf("expected timestamps to be recorded: %#v", toggle)
	}
	if snap.Events["new"] != 2 {
		t.Fatalf("expected two new events, got %d", snap.Events["new"])
	}
}

func TestCollectorToggle(t *testing.T) {
	c := NewCollector(false)
	c.RecordCall("circle", "next")
	if snap := c.Snapshot(); snap.Enabled || len(snap.Verbs) != 0 {
		t.Fatalf("expected disabled snapshot: %#v", snap)
	}
	c.SetEnabled(true)
	c.RecordCall("circle", "next")
	snap := c.Snapshot()
	if !snap.Enabled || snap.Totals.Calls != 1 {
		t.Fatalf("unexpected enabled snapshot: %#v", snap)
	}
	c.SetEnabled(false)
	snap = c.Snapshot()
	if snap.Enabled {
		t.Fatalf("expected disabled after toggle")
	}
	if !snap.Started.IsZero() {
		t.Fatalf("expected started timestamp reset, got %v", snap.Started)
	}
	time.Sleep(10 * time.Millisecond)
	c.SetEnabled(true)
	c.RecordCall("circle", "next")
	snap = c.Snapshot()
	if snap.Totals.Calls != 1 {
		t.Fatalf("expected counters to reset after re-enable: %#v", snap)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordCall("circle", "next")
	c.RecordEvent("new")
	if c.Enabled() || c.Snapshot().Enabled {
		t.Fatalf("expected nil collector to report disabled")
	}
}
