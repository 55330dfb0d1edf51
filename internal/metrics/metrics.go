package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetryhub/event-buffer/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsBuffered   prometheus.Counter
	EventsEvicted    prometheus.Counter
	EventsFlushed    *prometheus.CounterVec
	FlushLatency     prometheus.Histogram
	StoreWriteRetry  prometheus.Counter
	LockAcquired     prometheus.Counter
	LockContended    prometheus.Counter
	QueueSizeBytes   prometheus.Gauge
	QueueUtilization prometheus.Gauge
}

// Flush outcome label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried"
	OutcomeDropped   = "dropped"
)

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buffer_events_added_total",
			Help: "Total number of events accepted into the buffer.",
		}),
		EventsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buffer_events_evicted_total",
			Help: "Total number of events evicted oldest-first to satisfy the byte ceiling.",
		}),
		EventsFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "buffer_events_flushed_total",
			Help: "Flush attempts by outcome: delivered, retried, or dropped.",
		}, []string{"outcome"}),
		FlushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "buffer_flush_delivery_seconds",
			Help:    "Per-event delivery latency during a flush cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		StoreWriteRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_write_retries_total",
			Help: "Backing-store writes that failed transiently and were retried.",
		}),
		LockAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lock_acquired_total",
			Help: "Successful cross-instance lock acquisitions.",
		}),
		LockContended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lock_contended_total",
			Help: "Acquisition attempts that found another live holder.",
		}),
		QueueSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buffer_queue_size_bytes",
			Help: "Serialized size of the queued-event collection after the last write.",
		}),
		QueueUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buffer_queue_utilization_percent",
			Help: "Queue size as a percentage of the 1 MiB ceiling.",
		}),
	}

	reg.MustRegister(
		m.EventsBuffered,
		m.EventsEvicted,
		m.EventsFlushed,
		m.FlushLatency,
		m.StoreWriteRetry,
		m.LockAcquired,
		m.LockContended,
		m.QueueSizeBytes,
		m.QueueUtilization,
	)

	return m
}

// QueueHooks returns the callbacks expected by queue.Hooks.
// Centralises the prometheus observation calls so the queue stays import-free.
func (m *Metrics) QueueHooks() (onEvict func(int), onWrite func(int)) {
	onEvict = func(count int) {
		m.EventsEvicted.Add(float64(count))
	}
	onWrite = func(sizeBytes int) {
		m.QueueSizeBytes.Set(float64(sizeBytes))
		m.QueueUtilization.Set(float64(sizeBytes) / domain.MaxQueueBytes * 100)
	}
	return
}

// LockHooks returns the callbacks expected by lock.Hooks.
func (m *Metrics) LockHooks() (onAcquired, onContended func()) {
	onAcquired = func() { m.LockAcquired.Inc() }
	onContended = func() { m.LockContended.Inc() }
	return
}

// FlushHooks returns the callbacks expected by worker.FlushHooks.
func (m *Metrics) FlushHooks() (
	onDelivered func(latency time.Duration),
	onRetried func(),
	onDropped func(),
) {
	onDelivered = func(latency time.Duration) {
		m.EventsFlushed.WithLabelValues(OutcomeDelivered).Inc()
		m.FlushLatency.Observe(latency.Seconds())
	}
	onRetried = func() { m.EventsFlushed.WithLabelValues(OutcomeRetried).Inc() }
	onDropped = func() { m.EventsFlushed.WithLabelValues(OutcomeDropped).Inc() }
	return
}

// RetryHook returns the callback fed to the retryable store decorator.
func (m *Metrics) RetryHook() func() {
	return func() { m.StoreWriteRetry.Inc() }
}
