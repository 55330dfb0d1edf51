package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/telemetryhub/event-buffer/internal/api/handler"
	apimw "github.com/telemetryhub/event-buffer/internal/api/middleware"
	"github.com/telemetryhub/event-buffer/internal/identity"
	"github.com/telemetryhub/event-buffer/internal/lock"
	"github.com/telemetryhub/event-buffer/internal/queue"
	"github.com/telemetryhub/event-buffer/internal/store"
	"github.com/telemetryhub/event-buffer/internal/worker"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	q *queue.BoundedEventQueue,
	lk *lock.CrossInstanceLock,
	self *identity.Identity,
	flusher *worker.Flusher,
	st store.Store,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(2 << 20)) // a 1 MiB event plus request envelope
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	eh := handler.NewEventHandler(q, logger)
	sh := handler.NewStatsHandler(q, lk, self, flusher)
	hh := handler.NewHealthHandler(st)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", eh.Create)
		r.Get("/events", eh.List)
		r.Delete("/events", eh.Clear)
		r.Delete("/events/{id}", eh.Delete)

		r.Post("/flush", sh.Flush)
		r.Get("/stats", sh.GetStats)
	})

	return r
}
