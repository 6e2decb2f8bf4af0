package kafka

import (
	"context"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/transport/retry"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer writes records synchronously, retrying with backoff until the
// broker acknowledges them.
type Producer struct {
	client     *kgo.Client
	maxRetries uint64
	logger     *zap.Logger
}

func NewProducer(brokers []string, maxRetries uint64, logger *zap.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{
		client:     client,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

func (p *Producer) produce(ctx context.Context, records []*kgo.Record) error {
	if len(records) == 0 {
		return nil
	}
	return retry.Do(ctx, p.maxRetries, p.logger, "produce", func() error {
		return p.client.ProduceSync(ctx, records...).FirstErr()
	})
}

func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

func (p *Producer) Close() error {
	p.client.Close()
	return nil
}

// TraceSink publishes the re-emitted trace changelog keyed by trace id.
type TraceSink struct {
	producer *Producer
	topic    string
}

func NewTraceSink(producer *Producer, topic string) *TraceSink {
	return &TraceSink{producer: producer, topic: topic}
}

func (ts *TraceSink) Produce(ctx context.Context, updates []model.Update[string]) error {
	records := make([]*kgo.Record, 0, len(updates))
	for _, update := range updates {
		value, err := EncodeTrace(update.Trace)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{Topic: ts.topic, Key: []byte(update.Key), Value: value})
	}
	if err := ts.producer.produce(ctx, records); err != nil {
		return fmt.Errorf("failed to produce %d trace updates to %s: %w", len(records), ts.topic, err)
	}
	return nil
}

// BatchSink publishes completed trace batches keyed by batch id.
type BatchSink struct {
	producer *Producer
	topic    string
}

func NewBatchSink(producer *Producer, topic string) *BatchSink {
	return &BatchSink{producer: producer, topic: topic}
}

func (bs *BatchSink) Name() string {
	return "kafka"
}

func (bs *BatchSink) WriteBatch(ctx context.Context, batch model.TraceBatch) error {
	value, err := EncodeBatch(batch)
	if err != nil {
		return err
	}
	record := &kgo.Record{Topic: bs.topic, Key: []byte(batch.BatchID), Value: value}
	if err := bs.producer.produce(ctx, []*kgo.Record{record}); err != nil {
		return fmt.Errorf("failed to produce batch %s to %s: %w", batch.BatchID, bs.topic, err)
	}
	return nil
}

// SpanProducer publishes ingested spans keyed by trace id.
type SpanProducer struct {
	producer *Producer
	topic    string
}

func NewSpanProducer(producer *Producer, topic string) *SpanProducer {
	return &SpanProducer{producer: producer, topic: topic}
}

func (sp *SpanProducer) PublishSpans(ctx context.Context, spans []model.Span) error {
	records := make([]*kgo.Record, 0, len(spans))
	for _, span := range spans {
		value, err := EncodeSpan(span)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{Topic: sp.topic, Key: []byte(span.TraceID), Value: value})
	}
	if err := sp.producer.produce(ctx, records); err != nil {
		return fmt.Errorf("failed to produce %d spans to %s: %w", len(records), sp.topic, err)
	}
	return nil
}
