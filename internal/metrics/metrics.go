// Package metrics exposes Prometheus instrumentation for the query path.
//
// All recorder methods are safe on a nil *Metrics, so components can take
// an optional metrics handle without guarding every call.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airac"

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Outcomes for writes, generation and queries
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultRateLimited = "rate_limited"
)

// Metrics holds the collectors for one process
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec // by result
	cacheWrites    *prometheus.CounterVec // by result
	rotations      prometheus.Counter
	generations    *prometheus.CounterVec // by result
	queries        *prometheus.CounterVec // by result
	stageDuration  *prometheus.HistogramVec
	ingestedChunks prometheus.Counter
}

// New creates metrics on a private registry. Go runtime and process
// collectors are registered too.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic_cache",
			Name:      "lookups_total",
			Help:      "Semantic cache lookups by result",
		}, []string{"result"}),

		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semantic_cache",
			Name:      "writes_total",
			Help:      "Semantic cache writes by result",
		}, []string{"result"}),

		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "credential_rotations_total",
			Help:      "Credential rotations triggered by rate-limit failures",
		}),

		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "requests_total",
			Help:      "Generation attempts by result",
		}, []string{"result"}),

		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Pipeline invocations by result",
		}, []string{"result"}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		ingestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Child chunks embedded and upserted",
		}),
	}

	reg.MustRegister(
		m.cacheLookups,
		m.cacheWrites,
		m.rotations,
		m.generations,
		m.queries,
		m.stageDuration,
		m.ingestedChunks,
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

// Handler serves the exposition format for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheLookup records a semantic cache lookup result
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheWrite records a semantic cache write result
func (m *Metrics) CacheWrite(result string) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(result).Inc()
}

// CredentialRotated records one credential rotation
func (m *Metrics) CredentialRotated() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// Generation records one generation attempt
func (m *Metrics) Generation(result string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(result).Inc()
}

// Query records one pipeline invocation
func (m *Metrics) Query(result string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(result).Inc()
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ChunksIngested adds n to the ingested chunk counter
func (m *Metrics) ChunksIngested(n int) {
	if m == nil {
		return
	}
	m.ingestedChunks.Add(float64(n))
}
