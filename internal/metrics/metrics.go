package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the scheduler's prometheus collectors. Each instance owns its
// registry so several servers can live in one process.
type Metrics struct {
	Registry          *prometheus.Registry
	SchedulesCompiled prometheus.Counter
	DelaysAdded       prometheus.Counter
	DelayMinutes      prometheus.Counter
	StatusUpdates     *prometheus.CounterVec
	ErrorsCount       *prometheus.CounterVec
	ProjectionTime    prometheus.Histogram
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		SchedulesCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_compiled_total",
			Help:      "Orders whose routing was compiled into operations",
		}),
		DelaysAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delays_added_total",
			Help:      "Manual delays appended to the ledger",
		}),
		DelayMinutes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delay_minutes_total",
			Help:      "Minutes of manual delay appended to the ledger",
		}),
		StatusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Order status changes by target status",
		}, []string{"status"}),
		ErrorsCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed API operations",
		}, []string{"operation"}),
		ProjectionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "projection_seconds",
			Help:      "Time taken to project the schedule",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{
		m.SchedulesCompiled, m.DelaysAdded, m.DelayMinutes, m.StatusUpdates, m.ErrorsCount, m.ProjectionTime,
	} {
		reg.MustRegister(c)
	}
	return m
}

// The recorders below accept a nil receiver so callers without metrics can
// skip the wiring.

func (m *Metrics) Compiled() {
	if m != nil {
		m.SchedulesCompiled.Inc()
	}
}

func (m *Metrics) Delayed(minutes int) {
	if m != nil {
		m.DelaysAdded.Inc()
		m.DelayMinutes.Add(float64(minutes))
	}
}

func (m *Metrics) StatusChanged(status string) {
	if m != nil {
		m.StatusUpdates.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Failed(operation string) {
	if m != nil {
		m.ErrorsCount.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) Projected(seconds float64) {
	if m != nil {
		m.ProjectionTime.Observe(seconds)
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
