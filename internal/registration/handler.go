// internal/registration/handler.go
package registration

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the registration feed-pull trigger.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/pull", h.handlePull)
	r.Post("/pull-sales", h.handlePullSales)
	return r
}

// sinceParam reads the ?since=YYYY-MM-DD query parameter, defaulting to one
// day ago. ok is false when the value is present but unparseable.
func sinceParam(r *http.Request) (since time.Time, ok bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Now().AddDate(0, 0, -1), true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(r)
	if !ok {
		http.Error(w, "invalid since date", http.StatusBadRequest)
		return
	}

	outcomes, err := h.service.SyncSince(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(outcomes)
}

func (h *Handler) handlePullSales(w http.ResponseWriter, r *http.Request) {
	since, ok := sinceParam(r)
	if !ok {
		http.Error(w, "invalid since date", http.StatusBadRequest)
		return
	}

	outcomes, err := h.service.SyncSalesSince(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(outcomes)
}
