package server

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	unknownApplication = "UNKNOWN-APPLICATION"
	unknownHost        = "UNKNOWN-HOST"
)

// SpanPublisher forwards translated spans to the span topic.
type SpanPublisher interface {
	PublishSpans(ctx context.Context, spans []model.Span) error
}

type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	publisher SpanPublisher
	metrics   *observability.PipelineMetrics
	logger    *zap.Logger
}

func NewTraceServiceServerImpl(
	logger *zap.Logger,
	publisher SpanPublisher,
	metrics *observability.PipelineMetrics,
) *TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return &TraceServiceServerImpl{
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
	}
}

// Export translates every span of the request and publishes the valid ones.
// Malformed spans are dropped here so that they never reach the pipeline.
func (tss *TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	var spans []model.Span
	var rejected int64
	for _, resourceSpan := range req.ResourceSpans {
		applicationName := getResourceAttribute(resourceSpan, "service.name", unknownApplication)
		hostname := getResourceAttribute(resourceSpan, "host.name", unknownHost)
		for _, span := range getTypedSpans(resourceSpan, applicationName, hostname) {
			if err := span.Validate(); err != nil {
				rejected++
				tss.metrics.SpanMalformed(ctx)
				tss.logger.Warn("Dropping malformed span", zap.Error(err))
				continue
			}
			spans = append(spans, span)
		}
	}

	if len(spans) > 0 {
		if err := tss.publisher.PublishSpans(ctx, spans); err != nil {
			tss.logger.Error("Failed to publish spans", zap.Int("spans", len(spans)), zap.Error(err))
			return nil, status.Error(codes.Unavailable, "failed to publish spans")
		}
	}

	response := &protoTrace.ExportTraceServiceResponse{}
	if rejected > 0 {
		response.PartialSuccess = &protoTrace.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  "spans without trace id or operation name, or ending before they start, were rejected",
		}
	}
	return response, nil
}

func getResourceAttribute(resourceSpan *v1.ResourceSpans, key string, fallback string) string {
	if resourceSpan.Resource == nil {
		return fallback
	}
	for _, attr := range resourceSpan.Resource.Attributes {
		if attr.Key == key && attr.Value.GetStringValue() != "" {
			return attr.Value.GetStringValue()
		}
	}
	return fallback
}

func getTypedSpans(resourceSpan *v1.ResourceSpans, applicationName string, hostname string) []model.Span {
	var typedSpans []model.Span
	for _, libSpan := range resourceSpan.ScopeSpans {
		for _, span := range libSpan.Spans {
			typedSpans = append(typedSpans, getTypedSpan(span, applicationName, hostname))
		}
	}
	return typedSpans
}

func getTypedSpan(span *v1.Span, applicationName string, hostname string) model.Span {
	startTime := time.Unix(0, int64(span.StartTimeUnixNano)).UTC()
	endTime := time.Unix(0, int64(span.EndTimeUnixNano)).UTC()
	return model.Span{
		SpanID:          hex.EncodeToString(span.SpanId),
		TraceID:         hex.EncodeToString(span.TraceId),
		StartTime:       startTime,
		EndTime:         endTime,
		Duration:        endTime.Sub(startTime),
		OperationName:   span.Name,
		RequestCount:    1,
		Hostname:        hostname,
		ApplicationName: applicationName,
	}
}
