package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/db/state_store"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/Avi18971911/TraceReconstructor/internal/query_server/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookup struct {
	traces map[string]model.Trace
	err    error
}

func (fl fakeLookup) Lookup(_ context.Context, traceID string) (model.Trace, error) {
	if fl.err != nil {
		return model.Trace{}, fl.err
	}
	trace, ok := fl.traces[traceID]
	if !ok {
		return model.Trace{}, state_store.ErrKeyNotFound
	}
	return trace, nil
}

func serve(t *testing.T, lookup handler.TraceLookup, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	CreateRouter(lookup, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter(t *testing.T) {
	start := time.UnixMilli(10).UTC()
	trace := model.Trace{TraceID: "t1", TraceCount: 1}.WithSpanList([]model.Span{
		{SpanID: "s1", OperationName: "OpA", StartTime: start, EndTime: start.Add(70 * time.Millisecond), RequestCount: 2},
	})
	lookup := fakeLookup{traces: map[string]model.Trace{"t1": trace}}

	t.Run("Reports health", func(t *testing.T) {
		rec := serve(t, lookup, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("Returns the current aggregate of a trace", func(t *testing.T) {
		rec := serve(t, lookup, http.MethodGet, "/traces/t1")
		require.Equal(t, http.StatusOK, rec.Code)

		var dto handler.TraceDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, "t1", dto.TraceID)
		require.Len(t, dto.Spans, 1)
		assert.Equal(t, int64(2), dto.Spans[0].RequestCount)
		assert.Equal(t, (70 * time.Millisecond).Nanoseconds(), dto.Duration)
		assert.Equal(t, int64(2), dto.OverallRequestCount)
	})

	t.Run("Returns not found for unknown traces", func(t *testing.T) {
		rec := serve(t, lookup, http.MethodGet, "/traces/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Returns internal server error when the store fails", func(t *testing.T) {
		rec := serve(t, fakeLookup{err: errors.New("disk failure")}, http.MethodGet, "/traces/t1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Rejects other methods", func(t *testing.T) {
		rec := serve(t, lookup, http.MethodPost, "/traces/t1")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
