package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reviews         *prometheus.CounterVec
	issuance        *prometheus.CounterVec
	extractions     *prometheus.CounterVec
}

// NewMetrics initialises the registry and collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campussync_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campussync_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reviews := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campussync_certificate_reviews_total",
		Help: "Certificate review decisions by outcome.",
	}, []string{"outcome"})
	issuance := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campussync_credential_issuance_total",
		Help: "Verifiable credential issuance attempts by result.",
	}, []string{"result"})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campussync_extractions_total",
		Help: "Certificate extraction runs by extractor and result.",
	}, []string{"extractor", "result"})
	registry.MustRegister(requests, duration, reviews, issuance, extractions)

	for _, outcome := range []string{"approved", "rejected", "issuance_failed", "auto_approved"} {
		reviews.WithLabelValues(outcome)
	}
	issuance.WithLabelValues("success")
	issuance.WithLabelValues("failure")

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reviews:         reviews,
		issuance:        issuance,
		extractions:     extractions,
	}
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

// Middleware records every HTTP request.
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

// ObserveReview counts a certificate review outcome.
func (m *Metrics) ObserveReview(outcome string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome).Inc()
}

// ObserveIssuance counts a credential issuance attempt.
func (m *Metrics) ObserveIssuance(success bool) {
	if m == nil {
		return
	}
	m.issuance.WithLabelValues(result(success)).Inc()
}

// ObserveExtraction counts an extractor run.
func (m *Metrics) ObserveExtraction(extractor string, success bool) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(extractor, result(success)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
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
