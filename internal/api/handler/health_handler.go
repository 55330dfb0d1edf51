package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/telemetryhub/event-buffer/internal/store"
)

// HealthHandler serves the liveness/readiness probe. Readiness is a cheap
// round-trip against the backing store: a buffer that cannot reach its slots
// is not ready to accept events.
type HealthHandler struct {
	st      store.Store
	started time.Time
}

func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{st: st, started: time.Now()}
}

// Health handles GET /health
//
// @Summary  Liveness and store-readiness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.st.Keys(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "backing store unreachable",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
