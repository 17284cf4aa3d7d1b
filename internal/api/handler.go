package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store    domain.RecordStore
	cache    domain.Cache
	bus      domain.EventBus
	deriver  *features.Deriver
	pipeline *pipeline.Pipeline
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(store domain.RecordStore, cache domain.Cache, bus domain.EventBus, deriver *features.Deriver, p *pipeline.Pipeline, version string) *Handler {
	return &Handler{
		store:    store,
		cache:    cache,
		bus:      bus,
		deriver:  deriver,
		pipeline: p,
		version:  version,
	}
}

// Health returns component health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListCustomers handles GET /customers with filter, search and limit
// query parameters. Heuristic scores only; no model inference.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := q.Get("filter")
	if filter == "" {
		filter = features.FilterAll
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	customers, err := h.deriver.ListCustomers(r.Context(), filter, q.Get("search"), limit)
	if err != nil {
		slog.Error("customer listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list customers",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

// GetFeatures handles GET /customers/{id}/features.
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	v, err := h.deriver.Derive(r.Context(), customerID)
	if err != nil {
		h.writeDeriveError(w, customerID, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// Assess handles POST /customers/{id}/assess: one full pipeline run.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	result, err := h.pipeline.Run(r.Context(), customerID)
	if err != nil {
		h.writeDeriveError(w, customerID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result":  result,
		"traceId": GetTraceID(r.Context()),
		"totalMs": time.Since(start).Milliseconds(),
	})
}

// BatchAssessRequest is the request body for POST /customers/assess.
type BatchAssessRequest struct {
	CustomerIDs []string `json:"customerIds"`
}

// AssessBatch handles POST /customers/assess: bounded concurrent
// enrichment of a customer list.
func (h *Handler) AssessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchAssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.CustomerIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customerIds is required",
		})
		return
	}

	items := h.pipeline.EnrichBatch(r.Context(), req.CustomerIDs)
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// DashboardStats handles GET /dashboard/stats.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deriver.DashboardStats(r.Context())
	if err != nil {
		slog.Error("dashboard aggregation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build dashboard stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// writeDeriveError maps pipeline errors: NotFound is the only
// distinguishable failure surfaced to callers.
func (h *Handler) writeDeriveError(w http.ResponseWriter, customerID string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":      "customer not found",
			"customerId": customerID,
		})
		return
	}

	slog.Error("pipeline run failed", "customer_id", customerID, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "assessment failed",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
