package router

import (
	"net/http"

	"github.com/Avi18971911/TraceReconstructor/internal/query_server/handler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func CreateRouter(
	lookup handler.TraceLookup,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle("/health", handler.HealthHandler(logger)).Methods("GET")

	r.Handle(
		"/traces/{traceId}", handler.TraceHandler(
			lookup,
			logger,
		),
	).Methods("GET")

	return r
}
