package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
)

// Runtime owns the meter provider installed for the process.
type Runtime struct {
	MeterProvider metric.MeterProvider
	shutdown      func(context.Context) error
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig, serviceName string, logger *zap.Logger) (*Runtime, error) {
	if !cfg.MetricsEnabled {
		return &Runtime{
			MeterProvider: noop.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}, nil
	}

	options := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		options = append(options, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("initialize otel metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(cfg.ExportInterval),
		sdkmetric.WithTimeout(cfg.ExportTimeout),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)
	logger.Info(
		"OpenTelemetry metrics enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Duration("interval", cfg.ExportInterval),
	)
	return &Runtime{MeterProvider: provider, shutdown: provider.Shutdown}, nil
}

func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil || r.shutdown == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.shutdown(shutdownCtx)
}
