package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	return m, reg
}

func TestMetrics_Counters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordEligibility("eligible")
	m.RecordEligibility("eligible")
	m.RecordEligibility("ineligible")
	m.RecordIssuance("issued")
	m.RecordIssuance("already_issued")
	m.RecordRenewalTransition("approved")
	m.RecordViolation()
	m.RecordEventPublishFailure("license.issued")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EligibilityChecks.WithLabelValues("eligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EligibilityChecks.WithLabelValues("ineligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Issuances.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Issuances.WithLabelValues("already_issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RenewalTransitions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Violations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventPublishFailure.WithLabelValues("license.issued")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEligibility("eligible")
		m.RecordIssuance("issued")
		m.RecordRenewalTransition("issued")
		m.RecordViolation()
		m.RecordEventPublishFailure("license.renewed")
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m, reg := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/license/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/license/1", "/license/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/license/{userId}", http.MethodGet, "404")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dlms_http_requests_total"))
}
