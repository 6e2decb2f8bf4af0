package handler

import "github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"

func traceToTraceDTO(input model.Trace) TraceDTO {
	spans := make([]SpanDTO, len(input.SpanList))
	for i, span := range input.SpanList {
		spans[i] = SpanDTO{
			SpanID:          span.SpanID,
			OperationName:   span.OperationName,
			RequestCount:    span.RequestCount,
			Hostname:        span.Hostname,
			ApplicationName: span.ApplicationName,
			StartTime:       span.StartTime,
			EndTime:         span.EndTime,
			Duration:        span.Duration.Nanoseconds(),
		}
	}
	return TraceDTO{
		TraceID:             input.TraceID,
		Spans:               spans,
		StartTime:           input.StartTime,
		EndTime:             input.EndTime,
		Duration:            input.Duration.Nanoseconds(),
		TraceCount:          input.TraceCount,
		OverallRequestCount: input.OverallRequestCount,
	}
}
