package engine

import (
	"sync"
	"time"
)

type JobStatus string

const (
	JobStatusOK    JobStatus = "ok"
	JobStatusError JobStatus = "error"

	inspectorHistoryLimit = 128
)

// JobRecord is one executed control verb.
type JobRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	Module    string        `json:"module"`
	Verb      string        `json:"verb"`
	Args      []string      `json:"args,omitempty"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

type jobLog struct {
	mu      sync.Mutex
	entries []JobRecord
	limit   int
}

func newJobLog(limit int) *jobLog {
	if limit <= 0 {
		limit = inspectorHistoryLimit
	}
	return &jobLog{limit: limit}
}

func (l *jobLog) record(entry JobRecord) {
	if l == nil {
		return
	}
	entry.Args = append([]string(nil), entry.Args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit > 0 && len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, entry)
}

func (l *jobLog) snapshot() []JobRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]JobRecord, len(l.entries))
	for i, entry := range l.entries {
		entry.Args = append([]string(nil), entry.Args...)
		out[i] = entry
	}
	return out
}
