package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gnce/internal/platform/middleware"
)

// NewRouter wires all public endpoints. Health and metrics stay outside the
// auth boundary; ledger routes require a bearer token when auth is
// configured.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/records/finalize", h.handleFinalize)
	r.Get("/kpi", h.handleKPI)

	r.Group(func(r chi.Router) {
		if h.verifier != nil {
			r.Use(middleware.RequireAuth(h.verifier, h.logger))
		}
		r.Get("/ledger", h.handleLedgerExport)
		r.Get("/ledger/verify", h.handleLedgerVerify)
	})

	return r
}
