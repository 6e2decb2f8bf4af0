package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// DecodeSpanRecord decodes a span topic record. A record that cannot be used
// is returned with Err set so that the caller can skip it.
func DecodeSpanRecord(key []byte, value []byte) model.SpanRecord {
	var span model.Span
	if err := json.Unmarshal(value, &span); err != nil {
		return model.SpanRecord{Key: string(key), Err: fmt.Errorf("%w: %v", model.ErrMalformedSpan, err)}
	}
	span = span.Normalized()
	recordKey := string(key)
	if recordKey == "" {
		recordKey = span.TraceID
	}
	if err := span.Validate(); err != nil {
		return model.SpanRecord{Key: recordKey, Span: span, Err: err}
	}
	return model.SpanRecord{Key: recordKey, Span: span}
}

func EncodeSpan(span model.Span) ([]byte, error) {
	value, err := json.Marshal(span)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal span %s: %w", span.SpanID, err)
	}
	return value, nil
}

func EncodeTrace(trace model.Trace) ([]byte, error) {
	value, err := json.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trace %s: %w", trace.TraceID, err)
	}
	return value, nil
}

func EncodeBatch(batch model.TraceBatch) ([]byte, error) {
	value, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch %s: %w", batch.BatchID, err)
	}
	return value, nil
}

func DecodeBatch(value []byte) (model.TraceBatch, error) {
	var batch model.TraceBatch
	if err := json.Unmarshal(value, &batch); err != nil {
		return model.TraceBatch{}, fmt.Errorf("failed to unmarshal trace batch: %w", err)
	}
	return batch, nil
}
