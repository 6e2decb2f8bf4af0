package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"github.com/Avi18971911/TraceReconstructor/internal/logging"
	"github.com/Avi18971911/TraceReconstructor/internal/transport/kafka"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const batchGroupSuffix = "-batch-consumer"

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "batch_consumer",
		Short:         "Logs every trace batch published by the reconstructor",
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

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	consumer, err := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID+batchGroupSuffix,
		cfg.Kafka.BatchTopic,
		cfg.Kafka.PollTimeout,
		logger,
	)
	if err != nil {
		return err
	}
	defer consumer.Close()
	source := kafka.NewBatchSource(consumer)

	logger.Info("Batch consumer started", zap.String("topic", cfg.Kafka.BatchTopic))
	for ctx.Err() == nil {
		batches, err := source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, kafka.ErrSourceClosed) {
				logger.Info("Batch consumer stopped")
				return nil
			}
			return err
		}
		for _, batch := range batches {
			logger.Info(
				fmt.Sprintf("New batch with %d traces", len(batch.Traces)),
				zap.String("batch_id", batch.BatchID),
			)
			for _, trace := range batch.Traces {
				logger.Debug("Trace in batch",
					zap.String("batch_id", batch.BatchID),
					zap.String("trace_id", trace.TraceID),
					zap.Int64("trace_count", trace.TraceCount),
					zap.Int("span_count", len(trace.SpanList)),
				)
			}
		}
		if len(batches) > 0 {
			if err := consumer.Commit(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to commit batch offsets", zap.Error(err))
			}
		}
	}
	logger.Info("Batch consumer stopped")
	return nil
}
