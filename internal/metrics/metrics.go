// Package metrics defines the Prometheus metrics exported by slskbridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slskbridge"

// Removal outcomes.
const (
	OutcomeRemoved        = "removed"
	OutcomeAlreadyRemoved = "already_removed"
	OutcomeFailed         = "failed"
)

// Skipped group reasons.
const (
	SkipNoAudio        = "no_audio"
	SkipMalformedState = "malformed_state"
)

// Metrics holds every collector. A nil *Metrics is not valid; use New(nil)
// for collectors that are not registered anywhere.
type Metrics struct {
	SyncDuration     prometheus.Histogram
	SyncErrors       prometheus.Counter
	Releases         *prometheus.GaugeVec
	SkippedGroups    *prometheus.CounterVec
	Removals         *prometheus.CounterVec
	RemovalTimeouts  prometheus.Counter
	DirectoryDeletes *prometheus.CounterVec
	SearchDuration   prometheus.Histogram
	Searches         *prometheus.CounterVec
	SearchReleases   prometheus.Histogram
	EnqueuedReleases prometheus.Counter
	ClientUp         prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_sync_duration_seconds",
			Help:      "Time spent building the release queue from slskd transfers",
			Buckets:   prometheus.DefBuckets,
		}),
		SyncErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_sync_errors_total",
			Help:      "Total number of queue syncs that failed to reach slskd",
		}),
		Releases: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_releases",
			Help:      "Releases in the most recent queue sync by status",
		}, []string{"status"}),
		SkippedGroups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_skipped_groups_total",
			Help:      "Directory groups left out of the queue by reason",
		}, []string{"reason"}),
		Removals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removals_total",
			Help:      "Release removals by outcome",
		}, []string{"outcome"}),
		RemovalTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removal_wait_timeouts_total",
			Help:      "Cancelled transfers that did not reach a terminal state in time",
		}),
		DirectoryDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_deletes_total",
			Help:      "Download directory deletions by outcome",
		}, []string{"outcome"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent on network searches including the wait for completion",
			Buckets:   []float64{1, 5, 10, 15, 20, 30, 45, 60, 90, 120},
		}),
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Network searches by outcome",
		}, []string{"outcome"}),
		SearchReleases: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_releases",
			Help:      "Releases returned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		EnqueuedReleases: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_releases_total",
			Help:      "Releases handed to slskd for download",
		}),
		ClientUp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slskd_up",
			Help:      "Whether the last health check reached a logged-in slskd (1) or not (0)",
		}),
	}
}

// NewRegistry returns a registry with the Go and process collectors and this
// package's metrics registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := New(reg)
	m.registry = reg
	return reg, m
}

// Handler serves the registry the metrics were created with, or the default
// gatherer when they were created with New.
func (m *Metrics) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
