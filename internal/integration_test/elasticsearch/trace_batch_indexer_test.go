//go:build integration

package elasticsearch

import (
	"context"
	"testing"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/client"
	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/indexer"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBatchIndexer(t *testing.T) {
	if es == nil {
		t.Error("es uninitialized or otherwise nil")
	}
	ac := client.NewTraceClientImpl(es, client.Immediate)
	ti := indexer.NewTraceBatchIndexer(ac, bootstrapper.TraceIndexName, 3, logger)

	t.Run("Indexes every trace of a batch", func(t *testing.T) {
		err := deleteAllDocuments(es, bootstrapper.TraceIndexName)
		require.NoError(t, err)

		start := time.Unix(1_581_938_395, 702_319_100).UTC()
		trace := model.Trace{TraceID: "50c246ad9c9883d1558df9f19b9ae7a6", TraceCount: 2}.WithSpanList([]model.Span{
			{SpanID: "7ef83c66eabd5fbb", TraceID: "50c246ad9c9883d1558df9f19b9ae7a6", OperationName: "createDatabase",
				StartTime: start, EndTime: start.Add(3 * time.Millisecond), RequestCount: 1,
				Hostname: "node-1", ApplicationName: "UNKNOWN-APPLICATION"},
		})
		other := trace.Clone()
		other.TraceID = "other"
		batch := model.TraceBatch{
			BatchID:   "b1",
			CreatedAt: time.Now().UTC(),
			Traces:    []model.Trace{trace, other},
		}
		require.NoError(t, ti.WriteBatch(context.Background(), batch))

		count, err := ac.Count(context.Background(), `{"query":{"term":{"batch_id":"b1"}}}`, []string{bootstrapper.TraceIndexName})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("Overwrites documents when a batch is replayed", func(t *testing.T) {
		err := deleteAllDocuments(es, bootstrapper.TraceIndexName)
		require.NoError(t, err)

		start := time.Unix(1_700_000_000, 0).UTC()
		trace := model.Trace{TraceID: "t1", TraceCount: 1}.WithSpanList([]model.Span{
			{SpanID: "s1", TraceID: "t1", OperationName: "OpA", StartTime: start, EndTime: start.Add(time.Second), RequestCount: 1},
		})
		batch := model.TraceBatch{BatchID: "b2", CreatedAt: time.Now().UTC(), Traces: []model.Trace{trace}}
		require.NoError(t, ti.WriteBatch(context.Background(), batch))
		require.NoError(t, ti.WriteBatch(context.Background(), batch))

		count, err := ac.Count(context.Background(), `{"query":{"match_all":{}}}`, []string{bootstrapper.TraceIndexName})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
