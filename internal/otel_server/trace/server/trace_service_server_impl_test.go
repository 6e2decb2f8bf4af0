package server

import (
	"context"
	"errors"
	"testing"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	common "go.opentelemetry.io/proto/otlp/common/v1"
	resource "go.opentelemetry.io/proto/otlp/resource/v1"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePublisher struct {
	err   error
	spans []model.Span
}

func (fp *fakePublisher) PublishSpans(_ context.Context, spans []model.Span) error {
	if fp.err != nil {
		return fp.err
	}
	fp.spans = append(fp.spans, spans...)
	return nil
}

func stringAttribute(key, value string) *common.KeyValue {
	return &common.KeyValue{
		Key:   key,
		Value: &common.AnyValue{Value: &common.AnyValue_StringValue{StringValue: value}},
	}
}

func request(attributes []*common.KeyValue, spans ...*v1.Span) *protoTrace.ExportTraceServiceRequest {
	return &protoTrace.ExportTraceServiceRequest{
		ResourceSpans: []*v1.ResourceSpans{{
			Resource:   &resource.Resource{Attributes: attributes},
			ScopeSpans: []*v1.ScopeSpans{{Spans: spans}},
		}},
	}
}

func otlpSpan(name string, start, end uint64) *v1.Span {
	return &v1.Span{
		TraceId:           []byte{0x50, 0xc2, 0x46, 0xad},
		SpanId:            []byte{0x7e, 0xf8},
		Name:              name,
		StartTimeUnixNano: start,
		EndTimeUnixNano:   end,
	}
}

func TestTraceServiceServerImpl_Export(t *testing.T) {
	t.Run("Translates spans with resource attributes", func(t *testing.T) {
		fp := &fakePublisher{}
		tss := NewTraceServiceServerImpl(zap.NewNop(), fp, nil)
		req := request(
			[]*common.KeyValue{stringAttribute("service.name", "accounts"), stringAttribute("host.name", "node-1")},
			otlpSpan("AccountService.Get", 1_000, 4_000),
		)
		res, err := tss.Export(context.Background(), req)
		require.NoError(t, err)
		assert.Nil(t, res.PartialSuccess)

		require.Len(t, fp.spans, 1)
		span := fp.spans[0]
		assert.Equal(t, "50c246ad", span.TraceID)
		assert.Equal(t, "7ef8", span.SpanID)
		assert.Equal(t, "AccountService.Get", span.OperationName)
		assert.Equal(t, "accounts", span.ApplicationName)
		assert.Equal(t, "node-1", span.Hostname)
		assert.Equal(t, int64(1), span.RequestCount)
		assert.Equal(t, int64(3_000), span.Duration.Nanoseconds())
	})

	t.Run("Falls back to unknown application and host", func(t *testing.T) {
		fp := &fakePublisher{}
		tss := NewTraceServiceServerImpl(zap.NewNop(), fp, nil)
		_, err := tss.Export(context.Background(), request(nil, otlpSpan("Op", 1, 2)))
		require.NoError(t, err)
		assert.Equal(t, unknownApplication, fp.spans[0].ApplicationName)
		assert.Equal(t, unknownHost, fp.spans[0].Hostname)
	})

	t.Run("Rejects malformed spans as a partial success", func(t *testing.T) {
		fp := &fakePublisher{}
		tss := NewTraceServiceServerImpl(zap.NewNop(), fp, nil)
		res, err := tss.Export(context.Background(), request(nil, otlpSpan("Op", 5, 2), otlpSpan("", 1, 2), otlpSpan("Op", 1, 2)))
		require.NoError(t, err)
		assert.Len(t, fp.spans, 1)
		require.NotNil(t, res.PartialSuccess)
		assert.Equal(t, int64(2), res.PartialSuccess.RejectedSpans)
	})

	t.Run("Reports publish failures as unavailable", func(t *testing.T) {
		fp := &fakePublisher{err: errors.New("broker down")}
		tss := NewTraceServiceServerImpl(zap.NewNop(), fp, nil)
		_, err := tss.Export(context.Background(), request(nil, otlpSpan("Op", 1, 2)))
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})
}
