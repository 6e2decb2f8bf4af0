package service

import (
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// Rekey keys a trace update by the structural signature of its trace.
func Rekey(update model.Update[string]) model.Update[model.Signature] {
	return model.Update[model.Signature]{
		Key:       model.SignatureOf(update.Trace),
		Trace:     update.Trace.Clone(),
		EventTime: update.EventTime,
		Stage:     model.StageRekeyed,
	}
}
