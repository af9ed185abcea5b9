// Package metrics collects the scan service's Prometheus instruments: a
// counter of scan submissions by outcome and a histogram of worker
// subprocess durations, scraped via the /metrics endpoint (spec.md §6 is
// silent on observability; SPEC_FULL.md commits to it as ambient
// infrastructure). A dedicated registry avoids colliding with any collector
// registered elsewhere in the process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// durationBucketBoundaries covers a few seconds (a small repo) up to an hour
// (the default worker timeout), matching pkg/worker's realistic range.
var durationBucketBoundaries = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	scansSubmitted  *prometheus.CounterVec
	workerDurations prometheus.Histogram
}

// New creates Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		scansSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devdashboard_scans_submitted_total",
			Help: "Scan submissions by outcome (accepted, too_many_jobs, invalid_url).",
		}, []string{"outcome"}),
		workerDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "devdashboard_worker_duration_seconds",
			Help:    "Wall-clock duration of a single worker subprocess, from spawn to exit.",
			Buckets: durationBucketBoundaries,
		}),
	}

	registry.MustRegister(m.scansSubmitted, m.workerDurations)
	return m
}

// IncSubmitted records one scan submission's outcome.
func (m *Metrics) IncSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.scansSubmitted.WithLabelValues(outcome).Inc()
}

// ObserveWorkerDuration records one worker subprocess's wall-clock runtime.
func (m *Metrics) ObserveWorkerDuration(seconds float64) {
	if m == nil {
		return
	}
	m.workerDurations.Observe(seconds)
}

// Handler returns the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
