package service

import (
	"testing"
	"time"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(traceID string, traceCount int64) model.Update[string] {
	return model.Update[string]{Key: traceID, Trace: model.Trace{TraceID: traceID, TraceCount: traceCount}}
}

func TestCompletionTracker_Sweep(t *testing.T) {
	base := time.Unix(100, 0)

	t.Run("Returns nothing before the idle threshold", func(t *testing.T) {
		ct := NewCompletionTracker(10 * time.Second)
		ct.Observe(update("t1", 1), base)
		assert.Empty(t, ct.Sweep(base.Add(9*time.Second)))
		assert.Equal(t, 1, ct.Pending())
	})

	t.Run("Returns the latest snapshot once idle and forgets it", func(t *testing.T) {
		ct := NewCompletionTracker(10 * time.Second)
		ct.Observe(update("t1", 1), base)
		ct.Observe(update("t1", 3), base.Add(time.Second))

		assert.Empty(t, ct.Sweep(base.Add(10*time.Second)))
		done := ct.Sweep(base.Add(11 * time.Second))
		require.Len(t, done, 1)
		assert.Equal(t, int64(3), done[0].TraceCount)
		assert.Zero(t, ct.Pending())
	})

	t.Run("Orders completed traces by last update", func(t *testing.T) {
		ct := NewCompletionTracker(time.Second)
		ct.Observe(update("late", 1), base.Add(2*time.Second))
		ct.Observe(update("early", 1), base)
		done := ct.Sweep(base.Add(time.Minute))
		require.Len(t, done, 2)
		assert.Equal(t, "early", done[0].TraceID)
		assert.Equal(t, "late", done[1].TraceID)
	})
}

func TestCompletionTracker_Drain(t *testing.T) {
	t.Run("Returns every tracked trace", func(t *testing.T) {
		ct := NewCompletionTracker(time.Hour)
		ct.Observe(update("t1", 1), time.Unix(1, 0))
		ct.Observe(update("t2", 1), time.Unix(1, 0))
		done := ct.Drain()
		require.Len(t, done, 2)
		assert.Equal(t, "t1", done[0].TraceID)
		assert.Zero(t, ct.Pending())
	})
}
