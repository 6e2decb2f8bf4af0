package service

import (
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// Reemit drops the window and signature key and keys the reduced trace by its own trace id.
func Reemit(update model.Update[model.WindowedKey]) model.Update[string] {
	return model.Update[string]{
		Key:       update.Trace.TraceID,
		Trace:     update.Trace.Clone(),
		EventTime: update.EventTime,
		Stage:     model.StageReemitted,
	}
}
