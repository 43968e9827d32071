package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all endpoints. The processing endpoint is open to the
// application collaborator; audit reads and relay operations require a
// bearer token.
func NewRouter(h *Handler, signingKey []byte, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Metadata)
	r.Use(AccessLog(logger))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/v1/process", h.handleProcess)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(signingKey, logger))
		r.Get("/v1/audit/events", h.handleListEvents)
		r.Get("/v1/audit/chains/{traceID}/validate", h.handleValidateChain)
		r.Post("/v1/audit/sync/retry", h.handleRetrySyncs)
		r.Get("/v1/pipeline/mode", h.handleMode)
	})

	return r
}
