// Package metrics exposes Prometheus counters for the license workflow and
// the HTTP layer.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dlms"

// Metrics holds the collectors registered by New. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	EligibilityChecks   *prometheus.CounterVec
	Issuances           *prometheus.CounterVec
	RenewalTransitions  *prometheus.CounterVec
	Violations          prometheus.Counter
	EventPublishFailure *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EligibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_checks_total",
			Help:      "Eligibility evaluations by resulting status.",
		}, []string{"status"}),
		Issuances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_issuance_total",
			Help:      "License issuance requests by outcome.",
		}, []string{"outcome"}),
		RenewalTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_transitions_total",
			Help:      "Renewal applications entering each status.",
		}, []string{"status"}),
		Violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_recorded_total",
			Help:      "Traffic violations recorded against licenses.",
		}),
		EventPublishFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}, []string{"channel"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	collectors := []prometheus.Collector{
		m.EligibilityChecks,
		m.Issuances,
		m.RenewalTransitions,
		m.Violations,
		m.EventPublishFailure,
		m.HTTPRequests,
		m.HTTPDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RecordEligibility(status string) {
	if m == nil {
		return
	}
	m.EligibilityChecks.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordIssuance(outcome string) {
	if m == nil {
		return
	}
	m.Issuances.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRenewalTransition(status string) {
	if m == nil {
		return
	}
	m.RenewalTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordViolation() {
	if m == nil {
		return
	}
	m.Violations.Inc()
}

func (m *Metrics) RecordEventPublishFailure(channel string) {
	if m == nil {
		return
	}
	m.EventPublishFailure.WithLabelValues(channel).Inc()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
