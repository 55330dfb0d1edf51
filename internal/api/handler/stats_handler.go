package handler

import (
	"net/http"

	"github.com/telemetryhub/event-buffer/internal/identity"
	"github.com/telemetryhub/event-buffer/internal/lock"
	"github.com/telemetryhub/event-buffer/internal/queue"
	"github.com/telemetryhub/event-buffer/internal/worker"
)

// StatsHandler serves a human-readable JSON snapshot of queue usage and the
// lock slot. Raw Prometheus metrics are available at /metrics via
// promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	q       *queue.BoundedEventQueue
	lk      *lock.CrossInstanceLock
	self    *identity.Identity
	flusher *worker.Flusher
}

func NewStatsHandler(
	q *queue.BoundedEventQueue,
	lk *lock.CrossInstanceLock,
	self *identity.Identity,
	flusher *worker.Flusher,
) *StatsHandler {
	return &StatsHandler{q: q, lk: lk, self: self, flusher: flusher}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Queue usage and lock-slot snapshot
// @Tags     stats
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	storage, err := h.q.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"storage":  storage,
		"lock":     h.lk.Stats(r.Context()),
		"instance": h.self.String(),
	})
}

// Flush handles POST /api/v1/flush
//
// @Summary  Trigger an immediate lock-guarded drain cycle
// @Tags     stats
// @Success  202
// @Router   /api/v1/flush [post]
func (h *StatsHandler) Flush(w http.ResponseWriter, r *http.Request) {
	h.flusher.FlushOnce(r.Context())
	w.WriteHeader(http.StatusAccepted)
}
