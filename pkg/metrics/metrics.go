// Package metrics exposes sync run and per-product outcome metrics.
//
// All metrics are registered on an instance-based registry passed by
// the caller, never the global default registry, so a discarded
// registry releases its metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the instrument set for one engine instance.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	productsTotal      *prometheus.CounterVec
	productFailures    prometheus.Counter
	lastRunUnixSeconds prometheus.Gauge
}

// New registers the sync metrics with the given registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_runs_total",
			Help: "Sync runs by result.",
		}, []string{"result"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedsync_run_duration_seconds",
			Help:    "Wall-clock duration of sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		productsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsync_products_total",
			Help: "Processed products by outcome action.",
		}, []string{"action"}),
		productFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedsync_product_failures_total",
			Help: "Products that finished a run unsuccessfully.",
		}),
		lastRunUnixSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feedsync_last_run_timestamp_seconds",
			Help: "Unix time of the most recent completed run.",
		}),
	}
}

// ObserveRun records one finished (or aborted) run.
func (m *Metrics) ObserveRun(result string, duration time.Duration) {
	m.runsTotal.WithLabelValues(result).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunUnixSeconds.SetToCurrentTime()
}

// ObserveProduct records one product outcome.
func (m *Metrics) ObserveProduct(action string, success bool) {
	m.productsTotal.WithLabelValues(action).Inc()
	if !success {
		m.productFailures.Inc()
	}
}
