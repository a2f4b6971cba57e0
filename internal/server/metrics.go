package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fuelgate"

// Metrics holds the Prometheus collectors for the data endpoint.
type Metrics struct {
	Requests    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	BusyWaits   prometheus.Counter
	WriterBusy  prometheus.Gauge
	AuditErrors prometheus.Counter
}

// NewMetrics registers the collectors with reg. Passing nil uses a private
// registry, which keeps tests independent of the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests handled, by outcome.",
		}, []string{"outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request arrival to the last response byte.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 3, 5, 10},
		}, []string{"outcome"}),
		BusyWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "busy_waits_total",
			Help:      "Delays spent waiting for the writer's busy marker to clear.",
		}),
		WriterBusy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "writer_busy",
			Help:      "1 while the busy marker is present, as seen by the marker watcher.",
		}),
		AuditErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audit_write_errors_total",
			Help:      "Audit records that could not be written.",
		}),
	}
}

// SetWriterBusy records a marker transition. It matches the watcher's
// callback signature.
func (m *Metrics) SetWriterBusy(busy bool) {
	if busy {
		m.WriterBusy.Set(1)
		return
	}
	m.WriterBusy.Set(0)
}
