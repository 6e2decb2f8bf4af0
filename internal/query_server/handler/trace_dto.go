package handler

import "time"

// SpanDTO represents one deduplicated operation of a trace
// @swagger:model SpanDTO
type SpanDTO struct {
	// The id of the first span recorded for the operation
	SpanID string `json:"span_id"`
	// The operation that was called
	OperationName string `json:"operation_name"`
	// How many times the operation was called within the trace
	RequestCount int64 `json:"request_count"`
	// The host the operation ran on
	Hostname string `json:"hostname"`
	// The application the operation belongs to
	ApplicationName string `json:"app_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	// The duration in nanoseconds
	Duration int64 `json:"duration"`
}

// TraceDTO represents the current aggregate of a trace
// @swagger:model TraceDTO
type TraceDTO struct {
	TraceID string    `json:"trace_id"`
	Spans   []SpanDTO `json:"span_list"`
	// The start of the earliest span
	StartTime time.Time `json:"start_time"`
	// The end of the latest span
	EndTime time.Time `json:"end_time"`
	// The duration in nanoseconds
	Duration            int64 `json:"duration"`
	TraceCount          int64 `json:"trace_count"`
	OverallRequestCount int64 `json:"overall_request_count"`
}

// HealthDTO reports whether the server is serving requests
// @swagger:model HealthDTO
type HealthDTO struct {
	Status string `json:"status"`
}
