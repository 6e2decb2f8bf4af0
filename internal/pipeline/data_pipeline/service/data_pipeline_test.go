package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/event_bus"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/timestamp"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/topology"
	windowService "github.com/Avi18971911/TraceReconstructor/internal/pipeline/window/service"
	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSpanSource struct {
	mu      sync.Mutex
	batches [][]model.SpanRecord
	commits int
	// cancel, when set, is called on poll number cancelOnPoll before its batch is returned
	cancel       context.CancelFunc
	cancelOnPoll int
	polls        int
}

func (fs *fakeSpanSource) Poll(ctx context.Context) ([]model.SpanRecord, error) {
	fs.mu.Lock()
	fs.polls++
	if fs.cancel != nil && fs.polls == fs.cancelOnPoll {
		fs.cancel()
	}
	if len(fs.batches) > 0 {
		next := fs.batches[0]
		fs.batches = fs.batches[1:]
		fs.mu.Unlock()
		return next, nil
	}
	fs.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (fs *fakeSpanSource) Commit(context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.commits++
	return nil
}

func (fs *fakeSpanSource) committed() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.commits
}

type fakeTraceSink struct {
	mu      sync.Mutex
	updates []model.Update[string]
}

func (fs *fakeTraceSink) Produce(_ context.Context, updates []model.Update[string]) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.updates = append(fs.updates, updates...)
	return nil
}

func (fs *fakeTraceSink) produced() []model.Update[string] {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]model.Update[string](nil), fs.updates...)
}

func record(traceID, operation string, startMs int64) model.SpanRecord {
	start := time.UnixMilli(startMs).UTC()
	return model.SpanRecord{Key: traceID, Span: model.Span{
		SpanID:        traceID + "-" + operation,
		TraceID:       traceID,
		StartTime:     start,
		EndTime:       start.Add(10 * time.Millisecond),
		OperationName: operation,
		RequestCount:  1,
	}}
}

func TestDataPipeline_Run(t *testing.T) {
	t.Run("Forwards reduced updates and commits on shutdown", func(t *testing.T) {
		source := &fakeSpanSource{batches: [][]model.SpanRecord{
			{record("A", "OpA", 1_000), record("A", "OpA", 1_100)},
			{record("B", "OpA", 2_000)},
		}}
		sink := &fakeTraceSink{}
		bus := EventBus.New()
		var published []model.Update[string]
		var mu sync.Mutex
		subscriber := event_bus.NewPipelineEventBus[model.Update[string], any](bus, zap.NewNop())
		require.NoError(t, subscriber.Subscribe(event_bus.TraceUpdatesTopic, func(u model.Update[string]) error {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, u)
			return nil
		}, true))

		dp := getNewDataPipeline(t, source, sink, bus, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- dp.Run(ctx) }()

		assert.Eventually(t, func() bool { return len(sink.produced()) == 3 }, 5*time.Second, 5*time.Millisecond)
		cancel()
		require.NoError(t, <-done)
		bus.WaitAsync()

		updates := sink.produced()
		assert.Equal(t, int64(2), updates[1].Trace.SpanList[0].RequestCount)
		assert.Equal(t, "A", updates[2].Key)
		assert.Equal(t, int64(3), updates[2].Trace.TraceCount)
		assert.GreaterOrEqual(t, source.committed(), 1)
		mu.Lock()
		assert.Len(t, published, 3)
		mu.Unlock()
	})

	t.Run("Applies and commits a batch polled while shutting down", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		source := &fakeSpanSource{
			batches: [][]model.SpanRecord{
				{record("A", "OpA", 1_000)},
				{record("B", "OpA", 1_200)},
			},
			cancel:       cancel,
			cancelOnPoll: 2,
		}
		sink := &fakeTraceSink{}
		dp := getNewDataPipeline(t, source, sink, EventBus.New(), zap.NewNop())

		require.NoError(t, dp.Run(ctx))
		assert.Equal(t, 1, source.committed())
		assert.Len(t, sink.produced(), 2)
		trace, err := dp.topology.Lookup(context.Background(), "B")
		require.NoError(t, err)
		assert.Equal(t, int64(1), trace.SpanList[0].RequestCount)
	})

	t.Run("Skips malformed records with a warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		malformed := model.SpanRecord{Key: "bad", Err: model.ErrMalformedSpan}
		source := &fakeSpanSource{}
		sink := &fakeTraceSink{}
		dp := getNewDataPipeline(t, source, sink, EventBus.New(), zap.New(core))

		require.NoError(t, dp.ProcessRecords(context.Background(), []model.SpanRecord{malformed, record("A", "OpA", 1_000)}))
		assert.Len(t, sink.produced(), 1)
		assert.Equal(t, 1, logs.FilterMessage("Skipping malformed span record").Len())
	})

	t.Run("Halts without committing when state is unavailable", func(t *testing.T) {
		source := &fakeSpanSource{batches: [][]model.SpanRecord{{record("A", "OpA", 1_000)}}}
		sink := &fakeTraceSink{}
		dp := getNewDataPipeline(t, source, sink, EventBus.New(), zap.NewNop())
		require.NoError(t, dp.topology.Close())

		err := dp.Run(context.Background())
		assert.Error(t, err)
		assert.Zero(t, source.committed())
		assert.Empty(t, sink.produced())
	})
}

func getNewDataPipeline(
	t *testing.T,
	source SpanSource,
	sink TraceSink,
	bus EventBus.Bus,
	logger *zap.Logger,
) *DataPipeline {
	t.Helper()
	tp, err := topology.NewTopology(
		topology.Options{
			AggregatorPartitions: 2,
			ReducerPartitions:    2,
			Window:               windowService.WindowOptions{Length: 4 * time.Second, Grace: 2 * time.Second},
			Extractor:            timestamp.StartTimeExtractor,
		},
		topology.BoltStoreFactory(t.TempDir(), 1<<20, time.Second, zap.NewNop()),
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Close() })
	return NewDataPipeline(
		tp,
		source,
		sink,
		event_bus.NewPipelineEventBus[any, model.Update[string]](bus, zap.NewNop()),
		time.Hour,
		nil,
		logger,
	)
}
