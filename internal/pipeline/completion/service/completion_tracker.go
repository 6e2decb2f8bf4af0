package service

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

type trackedTrace struct {
	trace    model.Trace
	lastSeen time.Time
}

// CompletionTracker infers that a trace is complete once no update for its key
// has been observed for the idle threshold. The pipeline itself never marks a
// trace as final.
type CompletionTracker struct {
	idleThreshold time.Duration
	mu            sync.Mutex
	traces        map[string]trackedTrace
}

func NewCompletionTracker(idleThreshold time.Duration) *CompletionTracker {
	return &CompletionTracker{
		idleThreshold: idleThreshold,
		traces:        make(map[string]trackedTrace),
	}
}

// Observe records update as the latest snapshot for its key.
func (ct *CompletionTracker) Observe(update model.Update[string], now time.Time) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.traces[update.Key] = trackedTrace{trace: update.Trace.Clone(), lastSeen: now}
}

// Sweep returns and forgets the traces idle for at least the threshold, oldest first.
func (ct *CompletionTracker) Sweep(now time.Time) []model.Trace {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	var idle []trackedTrace
	for key, tracked := range ct.traces {
		if now.Sub(tracked.lastSeen) >= ct.idleThreshold {
			idle = append(idle, tracked)
			delete(ct.traces, key)
		}
	}
	return sortedTraces(idle)
}

// Drain returns and forgets every tracked trace regardless of idleness.
func (ct *CompletionTracker) Drain() []model.Trace {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	all := make([]trackedTrace, 0, len(ct.traces))
	for _, tracked := range ct.traces {
		all = append(all, tracked)
	}
	clear(ct.traces)
	return sortedTraces(all)
}

func (ct *CompletionTracker) Pending() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.traces)
}

func sortedTraces(tracked []trackedTrace) []model.Trace {
	slices.SortFunc(tracked, func(a, b trackedTrace) int {
		if c := a.lastSeen.Compare(b.lastSeen); c != 0 {
			return c
		}
		return strings.Compare(a.trace.TraceID, b.trace.TraceID)
	})
	traces := make([]model.Trace, 0, len(tracked))
	for _, t := range tracked {
		traces = append(traces, t.trace)
	}
	return traces
}
