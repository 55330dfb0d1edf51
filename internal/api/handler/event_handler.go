package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apimw "github.com/telemetryhub/event-buffer/internal/api/middleware"
	"github.com/telemetryhub/event-buffer/internal/domain"
	"github.com/telemetryhub/event-buffer/internal/queue"
)

// EventHandler handles the buffered-event CRUD endpoints.
type EventHandler struct {
	q      *queue.BoundedEventQueue
	logger *zap.Logger
}

func NewEventHandler(q *queue.BoundedEventQueue, logger *zap.Logger) *EventHandler {
	return &EventHandler{q: q, logger: logger}
}

// Create handles POST /api/v1/events
//
// @Summary  Buffer a telemetry event
// @Tags     events
// @Accept   json
// @Produce  json
// @Param    body  body      domain.CreateEventRequest  true  "Event payload"
// @Success  201   {object}  domain.QueuedEvent
// @Failure  413   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/events [post]
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	ev := domain.QueuedEvent{
		ID:        req.ID,
		Timestamp: req.Timestamp,
		Payload:   req.Payload,
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = domain.NowMillis(time.Now())
	}

	if err := h.q.Add(r.Context(), ev); err != nil {
		h.logger.Warn("buffer event failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ev)
}

// List handles GET /api/v1/events
//
// @Summary  List buffered events, oldest first
// @Tags     events
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.q.GetAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

// Delete handles DELETE /api/v1/events/{id}
//
// @Summary  Remove a buffered event
// @Tags     events
// @Param    id   path  string  true  "Event ID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/events/{id} [delete]
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := h.q.Remove(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to remove event")
		return
	}
	if !removed {
		mapError(w, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/v1/events
//
// @Summary  Drop every buffered event
// @Tags     events
// @Success  204
// @Router   /api/v1/events [delete]
func (h *EventHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.q.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
