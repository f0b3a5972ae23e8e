// Package httptransport is the thin HTTP layer over the finalize pipeline,
// the ledger, and KPI aggregation. Handlers delegate to services and never
// embed pipeline logic.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gnce/internal/adra"
	"gnce/internal/kpi"
	"gnce/internal/kpi/cache"
	"gnce/internal/ledger"
	"gnce/internal/pipeline"
	"gnce/internal/platform/middleware"
	"gnce/internal/runlog"
)

// Finalizer runs the finalize pipeline for one record.
type Finalizer interface {
	Finalize(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

// Ledger is the read surface the transport needs from the hash chain.
type Ledger interface {
	Records() []ledger.Record
	Export() ([]byte, error)
}

// Snapshotter yields point-in-time KPIs from the streaming aggregator.
type Snapshotter interface {
	Snapshot() kpi.Summary
}

// Handler holds the route dependencies.
type Handler struct {
	logger     *slog.Logger
	finalizer  Finalizer
	ledger     Ledger
	agg        Snapshotter
	kpiCache   *cache.Cache
	runLogPath string
	verifier   middleware.TokenVerifier
}

// Option configures a Handler.
type Option func(*Handler)

// WithAggregator serves GET /kpi from the streaming aggregator instead of
// recomputing the batch on every request.
func WithAggregator(agg Snapshotter) Option {
	return func(h *Handler) { h.agg = agg }
}

// WithKPICache caches batch KPI snapshots.
func WithKPICache(c *cache.Cache) Option {
	return func(h *Handler) { h.kpiCache = c }
}

// WithAuth guards the ledger export routes with bearer-token auth.
func WithAuth(verifier middleware.TokenVerifier) Option {
	return func(h *Handler) { h.verifier = verifier }
}

// NewHandler builds the HTTP handler.
func NewHandler(finalizer Finalizer, ledgerChain Ledger, runLogPath string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:     logger,
		finalizer:  finalizer,
		ledger:     ledgerChain,
		runLogPath: runLogPath,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type finalizeRequest struct {
	Record   map[string]any `json:"record"`
	Regimes  map[string]any `json:"regimes,omitempty"`
	RawInput map[string]any `json:"raw_input,omitempty"`
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Record) == 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_request", "record is required")
		return
	}

	res, err := h.finalizer.Finalize(ctx, pipeline.Input{
		Record:   adra.Record(req.Record),
		Regimes:  req.Regimes,
		RawInput: req.RawInput,
	})
	if errors.Is(err, adra.ErrMissingVetoLayer) {
		h.writeError(ctx, w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "finalize failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal", "finalize failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleKPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.agg != nil && r.URL.Query().Get("source") != "batch" {
		writeJSON(w, http.StatusOK, h.agg.Snapshot())
		return
	}

	if h.kpiCache != nil {
		if s, err := h.kpiCache.Get(ctx); err == nil {
			writeJSON(w, http.StatusOK, s)
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			h.logger.WarnContext(ctx, "kpi cache read failed", "error", err)
		}
	}

	events, err := runlog.Read(h.runLogPath)
	if err != nil {
		h.logger.ErrorContext(ctx, "run log read failed", "path", h.runLogPath, "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal", "kpi aggregation failed")
		return
	}
	summary := kpi.Compute(events)

	if h.kpiCache != nil {
		if err := h.kpiCache.Set(ctx, summary); err != nil {
			h.logger.WarnContext(ctx, "kpi cache write failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	raw, err := h.ledger.Export()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger export failed", "error", err)
		h.writeError(r.Context(), w, http.StatusInternalServerError, "internal", "ledger export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *Handler) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	records := h.ledger.Records()
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  ledger.Verify(records),
		"length": len(records),
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": desc,
		"request_id":        middleware.GetRequestID(ctx),
	})
}
