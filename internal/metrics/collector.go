package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates counters for control verbs and window events.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	verbs   map[string]*VerbMetrics
	events  map[string]uint64
}

// VerbMetrics captures per-verb counters tracked by the collector.
type VerbMetrics struct {
	Module      string    `json:"module"`
	Verb        string    `json:"verb"`
	Calls       uint64    `json:"calls"`
	Errors      uint64    `json:"errors"`
	LastCalled  time.Time `json:"lastCalled,omitempty"`
	LastErrored time.Time `json:"lastErrored,omitempty"`
}

// Totals aggregates counters across all verbs in a snapshot.
type Totals struct {
	Calls  uint64 `json:"calls"`
	Errors uint64 `json:"errors"`
	Events uint64 `json:"events"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool              `json:"enabled"`
	Started time.Time         `json:"started,omitempty"`
	Totals  Totals            `json:"totals"`
	Verbs   []VerbMetrics     `json:"verbs,omitempty"`
	Events  map[string]uint64 `json:"events,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.verbs = nil
		c.events = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.verbs = make(map[string]*VerbMetrics)
	c.events = make(map[string]uint64)
}

// RecordCall increments the call counter for a verb.
func (c *Collector) RecordCall(module, verb string) {
	c.updateVerb(module, verb, func(metrics *VerbMetrics, now time.Time) {
		metrics.Calls++
		metrics.LastCalled = now
	})
}

// RecordError increments the error counter for a verb.
func (c *Collector) RecordError(module, verb string) {
	c.updateVerb(module, verb, func(metrics *VerbMetrics, now time.Time) {
		metrics.Errors++
		metrics.LastErrored = now
	})
}

// RecordEvent counts a window event by kind.
func (c *Collector) RecordEvent(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.events == nil {
		c.events = make(map[string]uint64)
	}
	c.events[kind]++
}

func (c *Collector) updateVerb(module, verb string, mutate func(*VerbMetrics, time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.verbs == nil {
		c.verbs = make(map[string]*VerbMetrics)
	}
	key := module + ":" + verb
	metrics, exists := c.verbs[key]
	if !exists {
		metrics = &VerbMetrics{Module: module, Verb: verb}
		c.verbs[key] = metrics
	}
	mutate(metrics, now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.events) > 0 {
		snap.Events = make(map[string]uint64, len(c.events))
		for kind, n := range c.events {
			snap.Events[kind] = n
			snap.Totals.Events += n
		}
	}
	if len(c.verbs) == 0 {
		return snap
	}
	snap.Verbs = make([]VerbMetrics, 0, len(c.verbs))
	for _, metrics := range c.verbs {
		if metrics == nil {
			continue
		}
		clone := *metrics
		snap.Verbs = append(snap.Verbs, clone)
		snap.Totals.Calls += clone.Calls
		snap.Totals.Errors += clone.Errors
	}
	sort.Slice(snap.Verbs, func(i, j int) bool {
		if snap.Verbs[i].Module == snap.Verbs[j].Module {
			return snap.Verbs[i].Verb < snap.Verbs[j].Verb
		}
		return snap.Verbs[i].Module < snap.Verbs[j].Module
	})
	return snap
}
