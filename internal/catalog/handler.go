// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"amnetsync/internal/amnet"
)

// Handler exposes the sync trigger endpoints for the catalog reconciler.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the trigger endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/events/{year}/{code}", h.handleReconcileEvent)
	r.Post("/products/{code}", h.handleReconcileProduct)
	r.Post("/events/{year}", h.handleReconcileBatch)
	return r
}

func (h *Handler) handleReconcileEvent(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	year := chi.URLParam(r, "year")

	item, err := h.service.ReconcileEvent(r.Context(), code, year)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	json.NewEncoder(w).Encode(item)
}

func (h *Handler) handleReconcileProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	item, err := h.service.ReconcileProduct(r.Context(), code)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	json.NewEncoder(w).Encode(item)
}

// handleReconcileBatch reconciles a list of event codes for one year and
// reports per-code outcomes. One bad code never fails the batch.
func (h *Handler) handleReconcileBatch(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")

	var req struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make(map[string]string, len(req.Codes))
	for _, code := range req.Codes {
		_, err := h.service.ReconcileEvent(r.Context(), code, year)
		switch {
		case err == nil:
			results[code] = "synced"
		case errors.Is(err, ErrExcluded):
			results[code] = "excluded"
		case errors.Is(err, amnet.ErrNoData):
			results[code] = "not_found"
		default:
			results[code] = err.Error()
		}
	}
	json.NewEncoder(w).Encode(results)
}

func writeReconcileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExcluded):
		// Excluded is a normal outcome, not a failure.
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, amnet.ErrNoData):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
