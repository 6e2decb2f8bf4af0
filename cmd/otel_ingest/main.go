package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"github.com/Avi18971911/TraceReconstructor/internal/logging"
	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	traceServer "github.com/Avi18971911/TraceReconstructor/internal/otel_server/trace/server"
	"github.com/Avi18971911/TraceReconstructor/internal/transport/kafka"
	"github.com/spf13/cobra"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
)

const serviceName = "otel-ingest"

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "otel_ingest",
		Short:         "Receives OTLP traces over gRPC and publishes their spans to the span topic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	obs, err := observability.Setup(ctx, cfg.Observability, serviceName, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, obs.Shutdown(context.Background())) }()
	metrics, err := observability.NewPipelineMetrics(obs.MeterProvider)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ProduceRetries, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	listener, err := net.Listen("tcp", cfg.OTLP.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.OTLP.ListenAddress, err)
	}

	srv := grpc.NewServer()
	traceServiceServer := traceServer.NewTraceServiceServerImpl(
		logger,
		kafka.NewSpanProducer(producer, cfg.Kafka.InputTopic),
		metrics,
	)
	protoTrace.RegisterTraceServiceServer(srv, traceServiceServer)

	go func() {
		<-ctx.Done()
		logger.Info("Stopping gRPC server")
		srv.GracefulStop()
	}()

	logger.Info("gRPC service started, listening for OpenTelemetry traces...",
		zap.String("address", cfg.OTLP.ListenAddress),
		zap.String("topic", cfg.Kafka.InputTopic),
	)
	if err := srv.Serve(listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return producer.Flush(flushCtx)
}
