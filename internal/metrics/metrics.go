// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one registry.
type Metrics struct {
	Registry *prometheus.Registry

	runs      *prometheus.CounterVec
	events    *prometheus.CounterVec
	documents *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRun   *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seminars_pipeline_runs_total",
			Help: "Pipeline runs by result (ok, failed, skipped).",
		}, []string{"pipeline", "result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seminars_events_processed_total",
			Help: "Events normalized and encoded by successful runs.",
		}, []string{"pipeline"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seminars_documents_written_total",
			Help: "Term documents committed to the output directory.",
		}, []string{"pipeline"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seminars_pipeline_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"pipeline"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seminars_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"pipeline"}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(pipeline string, ok bool, events, documents int, took time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
		m.events.WithLabelValues(pipeline).Add(float64(events))
		m.documents.WithLabelValues(pipeline).Add(float64(documents))
		m.lastRun.WithLabelValues(pipeline).SetToCurrentTime()
	}
	m.runs.WithLabelValues(pipeline, result).Inc()
	m.duration.WithLabelValues(pipeline).Observe(took.Seconds())
}

// ObserveSkip counts an upload no pipeline was bound to.
func (m *Metrics) ObserveSkip() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("", "skipped").Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
