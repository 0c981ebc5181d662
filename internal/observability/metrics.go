// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lattice-saas/lattice/internal/authz"
)

// Metrics aggregates the Prometheus registry and application collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	decisionsTotal  *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	decisionSeconds prometheus.Histogram
	auditDropped    prometheus.Counter
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lattice_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_authz_decisions_total",
		Help: "Permission decisions by outcome and reason.",
	}, []string{"outcome", "reason"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_authz_cache_lookups_total",
		Help: "Decision cache lookups by result.",
	}, []string{"result"})
	decisionSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lattice_authz_decision_duration_seconds",
		Help:    "Time spent resolving a permission decision.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})
	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lattice_authz_audit_dropped_total",
		Help: "Audit events dropped because the queue was full.",
	})
	registry.MustRegister(requests, duration, decisions, cacheLookups, decisionSeconds, auditDropped)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		decisionsTotal:  decisions,
		cacheLookups:    cacheLookups,
		decisionSeconds: decisionSeconds,
		auditDropped:    auditDropped,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// DecisionResolved implements authz.Instrumentation.
func (m *Metrics) DecisionResolved(decision authz.Decision, cacheHit bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "deny"
	reason := decision.Reason
	if decision.Allowed {
		outcome = "allow"
		reason = "granted"
	}
	m.decisionsTotal.WithLabelValues(outcome, reason).Inc()
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.decisionSeconds.Observe(elapsed.Seconds())
}

// AuditDropped implements authz.Instrumentation.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// Registerer exposes the registry for custom collector registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

var _ authz.Instrumentation = (*Metrics)(nil)
