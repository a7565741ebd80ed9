// Package metrics exposes pipeline counters in Prometheus format.
//
// Every method is safe to call on a nil *Metrics so components can take
// metrics as an optional dependency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "igfetch"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	downloads          *prometheus.CounterVec
	downloadBytes      prometheus.Counter
	jobs               *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent per extraction attempt.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"strategy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Extraction cache lookups by result.",
		}, []string{"result"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Media downloads by outcome.",
		}, []string{"outcome"}),
		downloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to disk by the media fetcher.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Download jobs reaching a terminal status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.extractions,
		m.extractionDuration,
		m.cacheLookups,
		m.downloads,
		m.downloadBytes,
		m.jobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExtraction records one strategy attempt
func (m *Metrics) ObserveExtraction(strategy string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(strategy, outcome(err)).Inc()
	m.extractionDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// CacheHit counts a fresh cache entry served
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss counts a lookup that went to the extractors
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveDownload records a finished media download
func (m *Metrics) ObserveDownload(err error, bytes int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(outcome(err)).Inc()
	if err == nil && bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
}

// JobFinished counts a job reaching status
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
