package topology

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/db/state_store"
	"github.com/Avi18971911/TraceReconstructor/internal/observability"
	aggregatorService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/aggregator/service"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	reemitterService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/reemitter/service"
	signatureService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/signature/service"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/timestamp"
	windowService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/window/service"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Options struct {
	AggregatorPartitions int
	ReducerPartitions    int
	Window               windowService.WindowOptions
	Extractor            timestamp.Extractor
}

// StoreFactory opens the durable store owned by one operator partition.
type StoreFactory func(name string) (state_store.KeyValueStore, error)

// BoltStoreFactory opens one bbolt file per operator partition under directory,
// each fronted by its own read cache of cacheBytes.
func BoltStoreFactory(directory string, cacheBytes int64, openTimeout time.Duration, logger *zap.Logger) StoreFactory {
	return func(name string) (state_store.KeyValueStore, error) {
		bs, err := state_store.NewBoltStore(filepath.Join(directory, name+".db"), openTimeout, logger)
		if err != nil {
			return nil, err
		}
		cache, err := state_store.NewRistrettoCache(cacheBytes)
		if err != nil {
			return nil, multierr.Append(err, bs.Close())
		}
		return state_store.NewCachedStore(cache, bs), nil
	}
}

// Topology chains aggregation, re-keying, windowed reduction and re-emission
// over a fixed set of operator partitions.
type Topology struct {
	aggregators []*aggregatorService.TraceAggregator
	reducers    []*windowService.WindowedTraceReducer
	stores      []*state_store.TraceStore
	metrics     *observability.PipelineMetrics
	logger      *zap.Logger
}

func NewTopology(
	options Options,
	openStore StoreFactory,
	metrics *observability.PipelineMetrics,
	logger *zap.Logger,
) (*Topology, error) {
	if options.AggregatorPartitions < 1 || options.ReducerPartitions < 1 {
		return nil, fmt.Errorf("partition counts must be positive, got %d and %d",
			options.AggregatorPartitions, options.ReducerPartitions)
	}
	if options.Extractor == nil {
		options.Extractor = timestamp.StartTimeExtractor
	}
	tp := &Topology{
		metrics: metrics,
		logger:  logger,
	}
	open := func(name string) (*state_store.TraceStore, error) {
		kv, err := openStore(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store %s: %w", name, err)
		}
		store := state_store.NewTraceStore(kv)
		tp.stores = append(tp.stores, store)
		return store, nil
	}

	for p := 0; p < options.AggregatorPartitions; p++ {
		store, err := open(fmt.Sprintf("aggregator-%d", p))
		if err != nil {
			return nil, multierr.Append(err, tp.Close())
		}
		tp.aggregators = append(tp.aggregators, aggregatorService.NewTraceAggregator(
			store,
			options.Extractor,
			logger.With(zap.Int("aggregator_partition", p)),
		))
	}
	for p := 0; p < options.ReducerPartitions; p++ {
		store, err := open(fmt.Sprintf("reducer-%d", p))
		if err != nil {
			return nil, multierr.Append(err, tp.Close())
		}
		tp.reducers = append(tp.reducers, windowService.NewWindowedTraceReducer(
			store,
			p,
			options.Window,
			metrics,
			logger,
		))
	}
	return tp, nil
}

func (tp *Topology) AggregatorPartitions() int {
	return len(tp.aggregators)
}

func (tp *Topology) ReducerPartitions() int {
	return len(tp.reducers)
}

// AggregatorPartition routes every span of a trace to the same aggregator.
func (tp *Topology) AggregatorPartition(traceID string) int {
	return int(xxhash.Sum64String(traceID) % uint64(len(tp.aggregators)))
}

// ReducerPartition routes every update of a signature to the same reducer.
func (tp *Topology) ReducerPartition(signature model.Signature) int {
	return int(signature.Digest() % uint64(len(tp.reducers)))
}

// Aggregate folds span into its trace on the given aggregator partition and
// returns the update re-keyed by signature.
func (tp *Topology) Aggregate(
	ctx context.Context,
	partition int,
	traceID string,
	span model.Span,
) (model.Update[model.Signature], error) {
	update, err := tp.aggregators[partition].Aggregate(ctx, traceID, span)
	if err != nil {
		return model.Update[model.Signature]{}, err
	}
	tp.metrics.SpanConsumed(ctx, partition)
	return signatureService.Rekey(update), nil
}

// Reduce folds update into its window on the given reducer partition. It
// returns false when the update was late and produced no output.
func (tp *Topology) Reduce(
	ctx context.Context,
	partition int,
	update model.Update[model.Signature],
) (model.Update[string], bool, error) {
	reduced, dropped, err := tp.reducers[partition].Reduce(ctx, update)
	if err != nil || dropped {
		return model.Update[string]{}, false, err
	}
	return reemitterService.Reemit(reduced), true, nil
}

// Process runs one span through every stage on the calling goroutine.
func (tp *Topology) Process(ctx context.Context, traceID string, span model.Span) ([]model.Update[string], error) {
	rekeyed, err := tp.Aggregate(ctx, tp.AggregatorPartition(traceID), traceID, span)
	if err != nil {
		return nil, err
	}
	out, ok, err := tp.Reduce(ctx, tp.ReducerPartition(rekeyed.Key), rekeyed)
	if err != nil || !ok {
		return nil, err
	}
	return []model.Update[string]{out}, nil
}

// Lookup returns the current per-trace aggregate for traceID.
func (tp *Topology) Lookup(ctx context.Context, traceID string) (model.Trace, error) {
	return tp.aggregators[tp.AggregatorPartition(traceID)].Lookup(ctx, traceID)
}

func (tp *Topology) Close() error {
	var err error
	for _, store := range tp.stores {
		err = multierr.Append(err, store.Close())
	}
	tp.stores = nil
	return err
}
