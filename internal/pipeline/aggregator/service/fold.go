package service

import (
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// NewTrace starts the aggregate for a trace from its first span.
func NewTrace(traceID string, span model.Span) model.Trace {
	if span.TraceID != "" {
		traceID = span.TraceID
	}
	trace := model.Trace{
		TraceID:    traceID,
		TraceCount: 1,
	}
	return trace.WithSpanList([]model.Span{span.Normalized()})
}

// FoldSpan returns the aggregate obtained by folding span into trace. Repeated
// calls of an operation collapse into one entry whose request count grows and
// whose time bounds widen; the repeated call's own identity is discarded.
func FoldSpan(trace model.Trace, span model.Span) model.Trace {
	spans := trace.Clone().SpanList
	if i := trace.IndexOfOperation(span.OperationName); i >= 0 {
		existing := spans[i]
		existing.RequestCount++
		if span.StartTime.Before(existing.StartTime) {
			existing.StartTime = span.StartTime
		}
		if span.EndTime.After(existing.EndTime) {
			existing.EndTime = span.EndTime
		}
		existing.Duration = existing.EndTime.Sub(existing.StartTime)
		spans[i] = existing
	} else {
		spans = append(spans, span.Normalized())
	}
	return trace.WithSpanList(spans)
}
