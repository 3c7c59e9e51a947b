// Package metric provides Prometheus metrics for the page server.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "pageserver"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Repository registry
	RepositoryInits        *prometheus.CounterVec
	RepositoryInitDuration *prometheus.HistogramVec
	RepositoryGets         prometheus.Counter

	// Page operations issued against the active repository
	PageOps        *prometheus.CounterVec
	PageOpDuration *prometheus.HistogramVec

	// WAL redo
	RedoRequests *prometheus.CounterVec
	RedoDuration prometheus.Histogram
	RedoRecords  prometheus.Histogram

	// Admin HTTP surface
	HTTPRequests *prometheus.CounterVec
}

// NewRegistry creates a registry with all application metrics and the
// Go runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RepositoryInits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "inits_total",
			Help:      "Repository initializations by kind and result.",
		}, []string{"kind", "result"}),

		RepositoryInitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "init_duration_seconds",
			Help:      "Time spent constructing the repository.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 15, 60},
		}, []string{"kind"}),

		RepositoryGets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "gets_total",
			Help:      "Repository handles handed out to request paths.",
		}),

		PageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "page",
			Name:      "ops_total",
			Help:      "Page operations by operation and result.",
		}, []string{"op", "result"}),

		PageOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "page",
			Name:      "op_duration_seconds",
			Help:      "Latency of page operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"op"}),

		RedoRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "walredo",
			Name:      "requests_total",
			Help:      "WAL redo requests by result.",
		}, []string{"result"}),

		RedoDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "walredo",
			Name:      "duration_seconds",
			Help:      "Time spent replaying records onto a page.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		RedoRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "walredo",
			Name:      "records_per_request",
			Help:      "Number of WAL records replayed per redo request.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RepositoryInits,
		r.RepositoryInitDuration,
		r.RepositoryGets,
		r.PageOps,
		r.PageOpDuration,
		r.RedoRequests,
		r.RedoDuration,
		r.RedoRecords,
		r.HTTPRequests,
	)

	return r
}

// Prometheus returns the underlying registry, for components that
// register their own collectors (e.g. the Badger object store).
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry: r.registry,
	})
}

// Result converts an error into a "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
