// Package telemetry owns the Prometheus collectors exported on /metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hoa"

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec

	pendingReviews prometheus.Gauge
	slaBreaches    prometheus.Gauge
	staleDrafts    prometheus.Gauge
	pipelineValue  prometheus.Gauge
	adoptionRate   prometheus.Gauge

	buildInfo *prometheus.GaugeVec
}

// Gauges is the subset of the operational snapshot mirrored into Prometheus.
type Gauges struct {
	PendingReviews int
	SLABreaches    int
	StaleDrafts    int
	PipelineValue  float64
	AdoptionRate   float64
}

// New builds the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_transitions_total",
			Help:      "Entry lifecycle transitions that were applied.",
		}, []string{"action", "from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_transition_rejections_total",
			Help:      "Entry lifecycle transitions that were refused, by error code.",
		}, []string{"action", "reason"}),
		pendingReviews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_queue_pending",
			Help:      "Entries waiting on the treasurer.",
		}),
		slaBreaches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_queue_sla_breaches",
			Help:      "Pending entries older than the review SLA.",
		}),
		staleDrafts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_drafts",
			Help:      "Drafts untouched for longer than the stale window.",
		}),
		pipelineValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_value_dollars",
			Help:      "Total value of entries not yet decided.",
		}),
		adoptionRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "member_adoption_ratio",
			Help:      "Share of members currently active.",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information.",
		}, []string{"version", "environment"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.transitions, m.rejections,
		m.pendingReviews, m.slaBreaches, m.staleDrafts, m.pipelineValue, m.adoptionRate,
		m.buildInfo,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SetBuildInfo(version, environment string) {
	m.buildInfo.WithLabelValues(version, environment).Set(1)
}

func (m *Metrics) TransitionApplied(action, from, to string) {
	m.transitions.WithLabelValues(action, from, to).Inc()
}

func (m *Metrics) TransitionRejected(action, reason string) {
	m.rejections.WithLabelValues(action, reason).Inc()
}

func (m *Metrics) ObserveGauges(g Gauges) {
	m.pendingReviews.Set(float64(g.PendingReviews))
	m.slaBreaches.Set(float64(g.SLABreaches))
	m.staleDrafts.Set(float64(g.StaleDrafts))
	m.pipelineValue.Set(g.PipelineValue)
	m.adoptionRate.Set(g.AdoptionRate)
}

// Instrument records request count, latency and in-flight requests. The path
// label is the chi route pattern so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
