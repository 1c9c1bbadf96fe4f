package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRule("unused-dependency", 10*time.Millisecond, 2, nil)
	m.ObserveRule("unused-dependency", time.Millisecond, 0, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleErrorsTotal.WithLabelValues("unused-dependency")))

	m.ModuleStarted(":app")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModulesInFlight))
	m.ModuleFinished(":app", time.Second, nil)
	m.ModuleStarted(":lib")
	m.ModuleFinished(":lib", time.Second, errors.New("boom"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ModulesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModulesEvaluatedTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModulesEvaluatedTotal.WithLabelValues("error")))

	m.CacheEvicted(":lib")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictionsTotal))

	m.ObserveCache(&storage.Stats{Hits: 7, Misses: 3})
	m.ObserveCache(nil)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.AnalysisCacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AnalysisCacheMisses))
}

func TestMetrics_RunFinished(t *testing.T) {
	tests := []struct {
		name    string
		outcome *finding.Outcome
		label   string
	}{
		{
			name:    "success",
			outcome: finding.NewOutcome("r1", []finding.Result{{Module: ":a", RuleID: "unused-dependency", Kind: "fixable", Fixed: true}}, nil, nil),
			label:   OutcomeSuccess,
		},
		{
			name:    "failure",
			outcome: finding.NewOutcome("r2", []finding.Result{{Module: ":a", RuleID: "unused-dependency", Kind: "fixable"}}, nil, nil),
			label:   OutcomeFailure,
		},
		{
			name:    "error",
			outcome: finding.NewOutcome("r3", nil, nil, errors.New("cycle")),
			label:   OutcomeError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics(prometheus.NewRegistry())
			m.RunFinished(context.Background(), tt.outcome, time.Second)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(tt.label)))
			assert.Equal(t, tt.label, OutcomeLabel(tt.outcome))
			assert.Equal(t, len(tt.outcome.Results), testutil.CollectAndCount(m.FindingsTotal))
		})
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Handle("/metrics", MetricsHandler(registry))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/runs/{id}", "404")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "modcheck_http_requests_total"))
}
