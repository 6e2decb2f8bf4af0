package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	spanTopic  = "spans"
	traceTopic = "traces"
	batchTopic = "span-batches"
)

func newCluster(t *testing.T) []string {
	t.Helper()
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, spanTopic, traceTopic, batchTopic))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)
	return cluster.ListenAddrs()
}

func newProducer(t *testing.T, brokers []string) *Producer {
	t.Helper()
	p, err := NewProducer(brokers, 3, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newConsumer(t *testing.T, brokers []string, group, topic string) *Consumer {
	t.Helper()
	c, err := NewConsumer(brokers, group, topic, 100*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pollSpans(t *testing.T, source *SpanSource, want int) []model.SpanRecord {
	t.Helper()
	var records []model.SpanRecord
	deadline := time.Now().Add(10 * time.Second)
	for len(records) < want && time.Now().Before(deadline) {
		polled, err := source.Poll(context.Background())
		require.NoError(t, err)
		records = append(records, polled...)
	}
	require.Len(t, records, want)
	return records
}

func TestSpanSource_Poll(t *testing.T) {
	t.Run("Decodes spans published by the span producer", func(t *testing.T) {
		brokers := newCluster(t)
		spans := NewSpanProducer(newProducer(t, brokers), spanTopic)
		source := NewSpanSource(newConsumer(t, brokers, "reconstructor", spanTopic))

		start := time.UnixMilli(10).UTC()
		err := spans.PublishSpans(context.Background(), []model.Span{
			{SpanID: "s1", TraceID: "t1", OperationName: "OpA", StartTime: start, EndTime: start.Add(time.Second), RequestCount: 1},
			{SpanID: "s2", TraceID: "t1", OperationName: "OpB", StartTime: start, EndTime: start.Add(time.Second)},
		})
		require.NoError(t, err)

		records := pollSpans(t, source, 2)
		assert.Equal(t, "t1", records[0].Key)
		assert.NoError(t, records[0].Err)
		assert.Equal(t, "OpB", records[1].Span.OperationName)
		assert.Equal(t, int64(1), records[1].Span.RequestCount)
		assert.Equal(t, time.Second, records[1].Span.Duration)
		assert.NoError(t, source.Commit(context.Background()))
	})

	t.Run("Surfaces malformed records without failing the poll", func(t *testing.T) {
		brokers := newCluster(t)
		producer := newProducer(t, brokers)
		source := NewSpanSource(newConsumer(t, brokers, "reconstructor", spanTopic))

		err := producer.produce(context.Background(), []*kgo.Record{
			{Topic: spanTopic, Key: []byte("t1"), Value: []byte("not json")},
			{Topic: spanTopic, Key: []byte("t1"), Value: []byte(`{"trace_id":"t1"}`)},
		})
		require.NoError(t, err)

		records := pollSpans(t, source, 2)
		assert.ErrorIs(t, records[0].Err, model.ErrMalformedSpan)
		assert.ErrorIs(t, records[1].Err, model.ErrMalformedSpan)
	})
}

func TestConsumer_PollRecords(t *testing.T) {
	t.Run("Reports cancellation instead of an empty poll", func(t *testing.T) {
		brokers := newCluster(t)
		batches := NewBatchSource(newConsumer(t, brokers, "batch-consumer", batchTopic))
		spans := NewSpanSource(newConsumer(t, brokers, "reconstructor", spanTopic))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		for i := 0; i < 3; i++ {
			polledBatches, err := batches.Poll(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, polledBatches)
			polledSpans, err := spans.Poll(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, polledSpans)
		}
	})
}

func TestBatchSink_WriteBatch(t *testing.T) {
	t.Run("Round trips batches through the batch topic", func(t *testing.T) {
		brokers := newCluster(t)
		sink := NewBatchSink(newProducer(t, brokers), batchTopic)
		source := NewBatchSource(newConsumer(t, brokers, "batch-consumer", batchTopic))

		batch := model.TraceBatch{BatchID: "b1", CreatedAt: time.Unix(1, 0).UTC(), Traces: []model.Trace{{TraceID: "t1", TraceCount: 2}}}
		require.NoError(t, sink.WriteBatch(context.Background(), batch))

		var batches []model.TraceBatch
		assert.Eventually(t, func() bool {
			polled, err := source.Poll(context.Background())
			if err != nil {
				return false
			}
			batches = append(batches, polled...)
			return len(batches) == 1
		}, 10*time.Second, 10*time.Millisecond)
		assert.Equal(t, "b1", batches[0].BatchID)
		assert.Equal(t, int64(2), batches[0].Traces[0].TraceCount)
	})
}

func TestTraceSink_Produce(t *testing.T) {
	t.Run("Keys trace updates by trace id", func(t *testing.T) {
		brokers := newCluster(t)
		sink := NewTraceSink(newProducer(t, brokers), traceTopic)
		consumer := newConsumer(t, brokers, "downstream", traceTopic)

		err := sink.Produce(context.Background(), []model.Update[string]{
			{Key: "t1", Trace: model.Trace{TraceID: "t1", TraceCount: 1}},
		})
		require.NoError(t, err)

		var records []*kgo.Record
		assert.Eventually(t, func() bool {
			polled, err := consumer.PollRecords(context.Background())
			if err != nil {
				return false
			}
			records = append(records, polled...)
			return len(records) == 1
		}, 10*time.Second, 10*time.Millisecond)
		assert.Equal(t, []byte("t1"), records[0].Key)
		assert.Contains(t, string(records[0].Value), `"trace_count":1`)
	})
}

func TestDecodeSpanRecord(t *testing.T) {
	t.Run("Falls back to the trace id when the record has no key", func(t *testing.T) {
		record := DecodeSpanRecord(nil, []byte(`{"trace_id":"t9","operation_name":"OpA","start_time":"1970-01-01T00:00:00Z","end_time":"1970-01-01T00:00:01Z"}`))
		assert.NoError(t, record.Err)
		assert.Equal(t, "t9", record.Key)
	})

	t.Run("Rejects spans ending before they start", func(t *testing.T) {
		record := DecodeSpanRecord([]byte("t1"), []byte(`{"trace_id":"t1","operation_name":"OpA","start_time":"1970-01-01T00:00:02Z","end_time":"1970-01-01T00:00:01Z"}`))
		assert.ErrorIs(t, record.Err, model.ErrMalformedSpan)
	})
}
