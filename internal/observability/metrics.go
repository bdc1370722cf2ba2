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
	jobRunsTotal    *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cycleFailures   prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foodflow_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodflow_simulator_job_runs_total",
		Help: "Simulator job executions by job name and result.",
	}, []string{"job", "result"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foodflow_events_emitted_total",
		Help: "Inventory events emitted by event type.",
	}, []string{"type"})
	cycle := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "foodflow_integration_cycle_duration_seconds",
		Help:    "Duration of integration detect-decide-publish cycles.",
		Buckets: prometheus.DefBuckets,
	})
	cycleFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foodflow_integration_cycle_failures_total",
		Help: "Integration cycles that ended with an upstream failure.",
	})
	registry.MustRegister(requests, duration, jobRuns, events, cycle, cycleFailures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		jobRunsTotal:    jobRuns,
		eventsTotal:     events,
		cycleDuration:   cycle,
		cycleFailures:   cycleFailures,
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

// ObserveJobRun counts one simulator job execution.
func (m *Metrics) ObserveJobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRunsTotal.WithLabelValues(job, result).Inc()
}

// ObserveEvents counts emitted events by type.
func (m *Metrics) ObserveEvents(eventType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsTotal.WithLabelValues(eventType).Add(float64(n))
}

// ObserveCycle records one integration cycle.
func (m *Metrics) ObserveCycle(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
	if err != nil {
		m.cycleFailures.Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
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
