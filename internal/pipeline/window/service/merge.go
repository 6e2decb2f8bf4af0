package service

import (
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// MergeReduced folds a newly arrived trace into the reduced value of its
// (signature, window) bucket. The newest span list replaces the old one
// wholesale because a trace's span list only grows; it is not merged entry by
// entry. The bucket keeps the trace id of the trace that opened it.
func MergeReduced(reduced model.Trace, incoming model.Trace) model.Trace {
	merged := reduced.Clone()
	merged.TraceCount++
	merged.SpanList = incoming.Clone().SpanList
	merged.OverallRequestCount = incoming.OverallRequestCount
	if incoming.StartTime.Before(merged.StartTime) {
		merged.StartTime = incoming.StartTime
	}
	if incoming.EndTime.After(merged.EndTime) {
		merged.EndTime = incoming.EndTime
	}
	merged.Duration = merged.EndTime.Sub(merged.StartTime)
	return merged
}
