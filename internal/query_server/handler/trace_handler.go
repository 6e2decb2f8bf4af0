package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Avi18971911/TraceReconstructor/internal/db/state_store"
	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type TraceLookup interface {
	Lookup(ctx context.Context, traceID string) (model.Trace, error)
}

// TraceHandler creates a handler returning the current aggregate of a trace.
// @Summary Get the current aggregate of a trace.
// @Tags traces
// @Produce json
// @Param traceId path string true "The trace id"
// @Success 200 {object} TraceDTO "The deduplicated trace"
// @Failure 404 {object} ErrorMessage "Trace not found"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /traces/{traceId} [get]
func TraceHandler(
	lookup TraceLookup,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := mux.Vars(r)["traceId"]
		trace, err := lookup.Lookup(r.Context(), traceID)
		if errors.Is(err, state_store.ErrKeyNotFound) {
			HttpError(w, "Trace not found", http.StatusNotFound, logger)
			return
		}
		if err != nil {
			logger.Error("Error encountered when looking up trace", zap.String("trace_id", traceID), zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(traceToTraceDTO(trace))
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
	}
}

// HealthHandler creates a handler reporting that the server is up.
// @Summary Liveness check.
// @Tags health
// @Produce json
// @Success 200 {object} HealthDTO "The server is up"
// @Router /health [get]
func HealthHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(HealthDTO{Status: "ok"}); err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
		}
	}
}
