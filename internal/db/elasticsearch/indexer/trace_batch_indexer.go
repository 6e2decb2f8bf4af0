package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/client"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/transport/retry"
	"go.uber.org/zap"
)

const indexTimeout = 10 * time.Second

type TraceDocument struct {
	ID                  string        `json:"_id"`
	BatchID             string        `json:"batch_id"`
	BatchCreatedAt      time.Time     `json:"batch_created_at"`
	TraceID             string        `json:"trace_id"`
	SpanList            []model.Span  `json:"span_list"`
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
	Duration            time.Duration `json:"duration"`
	TraceCount          int64         `json:"trace_count"`
	OverallRequestCount int64         `json:"overall_request_count"`
}

func ToTraceDocuments(batch model.TraceBatch) []TraceDocument {
	docs := make([]TraceDocument, 0, len(batch.Traces))
	for _, trace := range batch.Traces {
		docs = append(docs, TraceDocument{
			ID:                  batch.BatchID + "-" + trace.TraceID,
			BatchID:             batch.BatchID,
			BatchCreatedAt:      batch.CreatedAt,
			TraceID:             trace.TraceID,
			SpanList:            trace.SpanList,
			StartTime:           trace.StartTime,
			EndTime:             trace.EndTime,
			Duration:            trace.Duration,
			TraceCount:          trace.TraceCount,
			OverallRequestCount: trace.OverallRequestCount,
		})
	}
	return docs
}

// TraceBatchIndexer bulk indexes every trace of a completed batch as one document.
type TraceBatchIndexer struct {
	ac         client.TraceClient
	index      string
	maxRetries uint64
	logger     *zap.Logger
}

func NewTraceBatchIndexer(ac client.TraceClient, index string, maxRetries uint64, logger *zap.Logger) *TraceBatchIndexer {
	return &TraceBatchIndexer{
		ac:         ac,
		index:      index,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (ti *TraceBatchIndexer) Name() string {
	return "elasticsearch"
}

func (ti *TraceBatchIndexer) WriteBatch(ctx context.Context, batch model.TraceBatch) error {
	if len(batch.Traces) == 0 {
		return nil
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(ToTraceDocuments(batch))
	if err != nil {
		return fmt.Errorf("error converting batch %s to meta and data map: %w", batch.BatchID, err)
	}
	err = retry.Do(ctx, ti.maxRetries, ti.logger, "bulk_index", func() error {
		bulkCtx, cancel := context.WithTimeout(ctx, indexTimeout)
		defer cancel()
		return ti.ac.BulkIndex(bulkCtx, metaMap, dataMap, ti.index)
	})
	if err != nil {
		return fmt.Errorf("error bulk indexing batch %s to Elasticsearch: %w", batch.BatchID, err)
	}
	ti.logger.Debug("Indexed trace batch",
		zap.String("batch_id", batch.BatchID),
		zap.Int("traces", len(batch.Traces)),
	)
	return nil
}
