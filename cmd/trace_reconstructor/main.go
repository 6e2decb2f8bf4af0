package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/config"
	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/client"
	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/indexer"
	"github.com/Avi18971911/TraceReconstructor/internal/logging"
	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	batcherService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/batcher/service"
	completionService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/completion/service"
	dataPipelineService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/data_pipeline/service"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/event_bus"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/timestamp"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/topology"
	windowService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/window/service"
	"github.com/Avi18971911/TraceReconstructor/internal/query_server/router"
	"github.com/Avi18971911/TraceReconstructor/internal/transport/kafka"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "trace-reconstructor"

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "trace_reconstructor",
		Short:         "Reconstructs traces from the span topic and ships completed trace batches",
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

	extractor, err := timestamp.ExtractorFor(cfg.Timestamp.Field)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.State.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tp, err := topology.NewTopology(
		topology.Options{
			AggregatorPartitions: cfg.Partitions.Aggregator,
			ReducerPartitions:    cfg.Partitions.Reducer,
			Window:               windowService.WindowOptions{Length: cfg.Window.Length, Grace: cfg.Window.Grace},
			Extractor:            extractor,
		},
		topology.BoltStoreFactory(cfg.State.Directory, cfg.State.CacheBytes, cfg.State.OpenTimeout, logger),
		metrics,
		logger,
	)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, tp.Close()) }()

	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.InputTopic, cfg.Kafka.PollTimeout, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ProduceRetries, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	sinks := []batcherService.BatchSink{kafka.NewBatchSink(producer, cfg.Kafka.BatchTopic)}
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
		if err != nil {
			return fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		if err := bootstrapper.NewBootstrapper(es, logger).BootstrapElasticsearch(ctx, cfg.Elasticsearch.Index); err != nil {
			return fmt.Errorf("failed to bootstrap elasticsearch: %w", err)
		}
		ac := client.NewTraceClientImpl(es, client.Async)
		sinks = append(sinks, indexer.NewTraceBatchIndexer(ac, cfg.Elasticsearch.Index, cfg.Kafka.ProduceRetries, logger))
	}

	eventBus := EventBus.New()
	batcher := batcherService.NewTraceBatcher(
		completionService.NewCompletionTracker(cfg.Batching.IdleThreshold),
		batcherService.NewTraceWriteBufferImpl(sinks, cfg.Batching.BatchSize, metrics, logger),
		event_bus.NewPipelineEventBus[model.Update[string], any](eventBus, logger),
		batcherService.BatcherOptions{
			SweepInterval: cfg.Batching.SweepInterval,
			FlushInterval: cfg.Batching.FlushInterval,
		},
		logger,
	)
	if err := batcher.Start(); err != nil {
		return err
	}
	dataPipeline := dataPipelineService.NewDataPipeline(
		tp,
		kafka.NewSpanSource(consumer),
		kafka.NewTraceSink(producer, cfg.Kafka.OutputTopic),
		event_bus.NewPipelineEventBus[any, model.Update[string]](eventBus, logger),
		cfg.Kafka.CommitInterval,
		metrics,
		logger,
	)
	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           router.CreateRouter(tp, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	batcherCtx, stopBatcher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBatcher()
	g.Go(func() error {
		// the batcher drains only after the pipeline has stopped publishing
		defer stopBatcher()
		return dataPipeline.Run(gctx)
	})
	g.Go(func() error {
		return batcher.Run(batcherCtx)
	})
	g.Go(func() error {
		logger.Info("Status server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("Trace reconstructor started",
		zap.String("input_topic", cfg.Kafka.InputTopic),
		zap.String("output_topic", cfg.Kafka.OutputTopic),
	)
	err = g.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Append(err, producer.Flush(flushCtx))
	logger.Info("Trace reconstructor stopped", zap.Error(err))
	return err
}
