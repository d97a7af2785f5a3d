package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	guardDecisions  *prometheus.CounterVec
	apiErrors       *prometheus.CounterVec
	incidents       prometheus.Counter
	polls           *prometheus.CounterVec
	pollDuration    *prometheus.HistogramVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	guard := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_guard_decisions_total",
		Help: "Route guard decisions by outcome.",
	}, []string{"outcome"})
	apiErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_api_errors_total",
		Help: "Backend call failures by classification.",
	}, []string{"kind"})
	incidents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_boundary_incidents_total",
		Help: "Panics caught by the error boundary.",
	})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_poll_total",
		Help: "Background poll fetches by poller and outcome.",
	}, []string{"poller", "outcome"})
	pollDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_poll_duration_seconds",
		Help:    "Background poll fetch latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"poller"})
	registry.MustRegister(requests, duration, guard, apiErrors, incidents, polls, pollDuration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		guardDecisions:  guard,
		apiErrors:       apiErrors,
		incidents:       incidents,
		polls:           polls,
		pollDuration:    pollDuration,
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

// ObserveGuardDecision counts a route guard outcome.
func (m *Metrics) ObserveGuardDecision(outcome string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(outcome).Inc()
}

// ObserveAPIError counts a classified backend failure.
func (m *Metrics) ObserveAPIError(kind string) {
	if m == nil {
		return
	}
	m.apiErrors.WithLabelValues(kind).Inc()
}

// ObserveIncident counts a panic caught by the boundary.
func (m *Metrics) ObserveIncident() {
	if m == nil {
		return
	}
	m.incidents.Inc()
}

// ObservePoll records one background fetch.
func (m *Metrics) ObservePoll(name, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(name, outcome).Inc()
	m.pollDuration.WithLabelValues(name).Observe(took.Seconds())
}

// Registerer exposes the registry for custom metrics.
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
