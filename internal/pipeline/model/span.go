package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrMalformedSpan = errors.New("malformed span")

type Span struct {
	SpanID          string        `json:"span_id"`
	TraceID         string        `json:"trace_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Duration        time.Duration `json:"duration"`
	OperationName   string        `json:"operation_name"`
	RequestCount    int64         `json:"request_count"`
	Hostname        string        `json:"hostname"`
	ApplicationName string        `json:"app_name"`
}

// Validate rejects spans that must never reach the stateful operators.
func (s Span) Validate() error {
	if s.TraceID == "" {
		return fmt.Errorf("%w: missing trace id", ErrMalformedSpan)
	}
	if s.OperationName == "" {
		return fmt.Errorf("%w: missing operation name for trace %s", ErrMalformedSpan, s.TraceID)
	}
	if s.EndTime.Before(s.StartTime) {
		return fmt.Errorf("%w: span %s ends before it starts", ErrMalformedSpan, s.SpanID)
	}
	if s.RequestCount < 1 {
		return fmt.Errorf("%w: span %s has request count %d", ErrMalformedSpan, s.SpanID, s.RequestCount)
	}
	return nil
}

// Normalized fills in the derived fields of a freshly decoded span.
func (s Span) Normalized() Span {
	if s.RequestCount == 0 {
		s.RequestCount = 1
	}
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

type SpanRecord struct {
	Key  string
	Span Span
	Err  error
}
