package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

var ErrSourceClosed = errors.New("kafka source is closed")

// Consumer reads one topic as part of a consumer group. Offsets are only
// committed when Commit is called, after the polled records were processed.
type Consumer struct {
	client      *kgo.Client
	pollTimeout time.Duration
	logger      *zap.Logger
}

func NewConsumer(
	brokers []string,
	groupID string,
	topic string,
	pollTimeout time.Duration,
	logger *zap.Logger,
) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer for topic %s: %w", topic, err)
	}
	return &Consumer{
		client:      client,
		pollTimeout: pollTimeout,
		logger:      logger.With(zap.String("topic", topic)),
	}, nil
}

// PollRecords waits at most the poll timeout for records. An empty result
// with a nil error means nothing arrived in time. Once ctx is done the
// context error is returned instead, unless records were already polled:
// those count as uncommitted and must reach the caller.
func (c *Consumer) PollRecords(ctx context.Context) ([]*kgo.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()
	fetches := c.client.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return nil, ErrSourceClosed
	}
	for _, fetchErr := range fetches.Errors() {
		if errors.Is(fetchErr.Err, context.DeadlineExceeded) || errors.Is(fetchErr.Err, context.Canceled) {
			continue
		}
		c.logger.Warn("Failed to fetch from partition",
			zap.Int32("partition", fetchErr.Partition),
			zap.Error(fetchErr.Err),
		)
	}
	records := fetches.Records()
	if len(records) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return records, nil
}

func (c *Consumer) Commit(ctx context.Context) error {
	if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}

// SpanSource polls span records keyed by trace id.
type SpanSource struct {
	*Consumer
}

func NewSpanSource(consumer *Consumer) *SpanSource {
	return &SpanSource{Consumer: consumer}
}

func (ss *SpanSource) Poll(ctx context.Context) ([]model.SpanRecord, error) {
	records, err := ss.PollRecords(ctx)
	if err != nil {
		return nil, err
	}
	spans := make([]model.SpanRecord, 0, len(records))
	for _, record := range records {
		spans = append(spans, DecodeSpanRecord(record.Key, record.Value))
	}
	return spans, nil
}

// BatchSource polls completed trace batches.
type BatchSource struct {
	*Consumer
}

func NewBatchSource(consumer *Consumer) *BatchSource {
	return &BatchSource{Consumer: consumer}
}

func (bs *BatchSource) Poll(ctx context.Context) ([]model.TraceBatch, error) {
	records, err := bs.PollRecords(ctx)
	if err != nil {
		return nil, err
	}
	batches := make([]model.TraceBatch, 0, len(records))
	for _, record := range records {
		batch, err := DecodeBatch(record.Value)
		if err != nil {
			bs.logger.Warn("Skipping undecodable batch", zap.Int64("offset", record.Offset), zap.Error(err))
			continue
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
