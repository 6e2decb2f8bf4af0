package model

import (
	"slices"
	"time"
)

type Trace struct {
	TraceID             string        `json:"trace_id"`
	SpanList            []Span        `json:"span_list"`
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
	Duration            time.Duration `json:"duration"`
	TraceCount          int64         `json:"trace_count"`
	OverallRequestCount int64         `json:"overall_request_count"`
}

// Clone returns a snapshot that shares no memory with t.
func (t Trace) Clone() Trace {
	t.SpanList = slices.Clone(t.SpanList)
	return t
}

// WithSpanList replaces the span list and recomputes every field derived from it.
func (t Trace) WithSpanList(spans []Span) Trace {
	t.SpanList = slices.Clone(spans)
	slices.SortStableFunc(t.SpanList, func(a, b Span) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return t.withRecomputedBounds()
}

func (t Trace) withRecomputedBounds() Trace {
	if len(t.SpanList) == 0 {
		t.StartTime, t.EndTime, t.Duration, t.OverallRequestCount = time.Time{}, time.Time{}, 0, 0
		return t
	}
	start, end := t.SpanList[0].StartTime, t.SpanList[0].EndTime
	var requests int64
	for _, span := range t.SpanList {
		if span.StartTime.Before(start) {
			start = span.StartTime
		}
		if span.EndTime.After(end) {
			end = span.EndTime
		}
		requests += span.RequestCount
	}
	t.StartTime = start
	t.EndTime = end
	t.Duration = end.Sub(start)
	t.OverallRequestCount = requests
	return t
}

// IndexOfOperation returns the position of the span entry for operationName, or -1.
func (t Trace) IndexOfOperation(operationName string) int {
	return slices.IndexFunc(t.SpanList, func(s Span) bool {
		return s.OperationName == operationName
	})
}
