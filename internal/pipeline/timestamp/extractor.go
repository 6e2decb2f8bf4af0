package timestamp

import (
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// Extractor picks the event time used for windowing from the span that
// triggered an update.
type Extractor func(span model.Span) time.Time

func StartTimeExtractor(span model.Span) time.Time {
	return span.StartTime
}

func EndTimeExtractor(span model.Span) time.Time {
	return span.EndTime
}

func ExtractorFor(field string) (Extractor, error) {
	switch field {
	case config.TimestampStartTime:
		return StartTimeExtractor, nil
	case config.TimestampEndTime:
		return EndTimeExtractor, nil
	default:
		return nil, fmt.Errorf("unknown timestamp field %q", field)
	}
}
