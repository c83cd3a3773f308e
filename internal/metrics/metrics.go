// Package metrics exposes Prometheus instrumentation for refresh batches
// and probes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshRuns counts completed refresh batches.
	RefreshRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "streamsentry",
		Name:      "refresh_runs_total",
		Help:      "Completed playlist refresh batches.",
	})

	// RefreshPlaylists counts per-playlist refresh outcomes within batches.
	RefreshPlaylists = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamsentry",
		Name:      "refresh_playlists_total",
		Help:      "Per-playlist refresh outcomes.",
	}, []string{"result"}) // ok | http_error | fetch_error | store_error

	// Probes counts probe invocations by strategy and outcome.
	Probes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamsentry",
		Name:      "probes_total",
		Help:      "Stream probes by strategy and outcome.",
	}, []string{"kind", "outcome"}) // kind: light | deep

	// ProbeDuration observes probe wall time by strategy.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamsentry",
		Name:      "probe_duration_seconds",
		Help:      "Probe wall time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
