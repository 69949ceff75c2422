// Package observability exposes Prometheus metrics for the HTTP server and
// the attachment lifecycle.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authFailures     *prometheus.CounterVec
	filesStored      *prometheus.CounterVec
	bytesStored      *prometheus.CounterVec
	fileRemovals     *prometheus.CounterVec
	reconcileRemoved *prometheus.CounterVec
}

// NewMetrics initialises the registry and its collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bootboard_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_auth_failures_total",
			Help: "Requests rejected by the access gate, by reason.",
		}, []string{"reason"}),
		filesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_files_stored_total",
			Help: "Files written to storage by kind.",
		}, []string{"kind"}),
		bytesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_file_bytes_stored_total",
			Help: "Bytes written to storage by kind.",
		}, []string{"kind"}),
		fileRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_file_removals_total",
			Help: "Physical file removal attempts by result.",
		}, []string{"result"}),
		reconcileRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootboard_reconcile_removals_total",
			Help: "Editor images removed after content edits, by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authFailures,
		m.filesStored,
		m.bytesStored,
		m.fileRemovals,
		m.reconcileRemoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and duration per route pattern.
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

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AuthFailure counts a request rejected by the access gate.
func (m *Metrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// FileStored counts a stored board file or editor image.
func (m *Metrics) FileStored(kind string, bytes int64) {
	if m == nil {
		return
	}
	m.filesStored.WithLabelValues(kind).Inc()
	m.bytesStored.WithLabelValues(kind).Add(float64(bytes))
}

// FileRemoval counts a removal attempt: removed, absent or error.
func (m *Metrics) FileRemoval(result string) {
	if m == nil {
		return
	}
	m.fileRemovals.WithLabelValues(result).Inc()
}

// ReconcileRemoved counts editor image deletions requested by one edit.
func (m *Metrics) ReconcileRemoved(requested, failed int) {
	if m == nil {
		return
	}
	m.reconcileRemoved.WithLabelValues("ok").Add(float64(requested - failed))
	m.reconcileRemoved.WithLabelValues("failed").Add(float64(failed))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
