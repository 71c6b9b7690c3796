// Package metrics exposes Prometheus collectors for the monitoring service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	monitorRunsTotal          *prometheus.CounterVec
	monitorFetchesTotal       *prometheus.CounterVec
	monitorFetchSeconds       prometheus.Histogram
	monitorFindingsTotal      *prometheus.CounterVec
	monitorRunFindings        *prometheus.HistogramVec
	monitorActiveCrawlWorkers prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times. Record functions are
// no-ops until Init has run, so library code never needs a registry.
func Init() {
	once.Do(func() {
		monitorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_runs_total",
				Help: "Total number of completed monitoring runs, labeled by site.",
			},
			[]string{"site"},
		)

		monitorFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_fetches_total",
				Help: "Total number of completed fetches, labeled by status code.",
			},
			[]string{"code"},
		)

		monitorFetchSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		monitorFindingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_findings_total",
				Help: "Total findings emitted, labeled by severity and category.",
			},
			[]string{"severity", "category"},
		)

		monitorRunFindings = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_run_findings",
				Help:    "Histogram of findings per run, labeled by site.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"site"},
		)

		monitorActiveCrawlWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_active_crawl_workers",
				Help: "Number of crawl workers currently running.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun increments the run counter and records the finding count for a
// completed run.
func RecordRun(site string, findings int) {
	if monitorRunsTotal == nil {
		return
	}
	monitorRunsTotal.WithLabelValues(site).Inc()
	monitorRunFindings.WithLabelValues(site).Observe(float64(findings))
}

// RecordFetch records a completed fetch and its latency.
func RecordFetch(code int, duration time.Duration) {
	if monitorFetchesTotal == nil {
		return
	}
	monitorFetchesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	monitorFetchSeconds.Observe(duration.Seconds())
}

// RecordFinding increments the finding counter.
func RecordFinding(severity, category string) {
	if monitorFindingsTotal == nil {
		return
	}
	monitorFindingsTotal.WithLabelValues(severity, category).Inc()
}

// WorkerStarted increments the active workers gauge.
func WorkerStarted() {
	if monitorActiveCrawlWorkers == nil {
		return
	}
	monitorActiveCrawlWorkers.Inc()
}

// WorkerStopped decrements the active workers gauge.
func WorkerStopped() {
	if monitorActiveCrawlWorkers == nil {
		return
	}
	monitorActiveCrawlWorkers.Dec()
}
