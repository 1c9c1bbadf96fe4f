package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

// Outcome labels of modcheck_runs_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	ModulesEvaluatedTotal *prometheus.CounterVec
	ModuleDuration        prometheus.Histogram
	ModulesInFlight       prometheus.Gauge

	RuleDuration    *prometheus.HistogramVec
	RuleErrorsTotal *prometheus.CounterVec
	FindingsTotal   *prometheus.CounterVec

	CacheEvictionsTotal prometheus.Counter
	AnalysisCacheHits   prometheus.Gauge
	AnalysisCacheMisses prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modcheck_runs_total",
				Help: "Total number of runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modcheck_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		ModulesEvaluatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modcheck_modules_evaluated_total",
				Help: "Total number of module evaluations by status",
			},
			[]string{"status"},
		),
		ModuleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modcheck_module_duration_seconds",
				Help:    "Module evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ModulesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modcheck_modules_in_flight",
				Help: "Number of modules being evaluated",
			},
		),
		RuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modcheck_rule_duration_seconds",
				Help:    "Rule evaluation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"rule"},
		),
		RuleErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modcheck_rule_errors_total",
				Help: "Total number of failed rule evaluations",
			},
			[]string{"rule"},
		),
		FindingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modcheck_findings_total",
				Help: "Total number of reported findings",
			},
			[]string{"rule", "fixed"},
		),
		CacheEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modcheck_cache_evictions_total",
				Help: "Total number of module analysis caches evicted by the scheduler",
			},
		),
		AnalysisCacheHits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modcheck_analysis_cache_hits",
				Help: "File analysis cache hits reported by the store",
			},
		),
		AnalysisCacheMisses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modcheck_analysis_cache_misses",
				Help: "File analysis cache misses reported by the store",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modcheck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modcheck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ModulesEvaluatedTotal,
		m.ModuleDuration,
		m.ModulesInFlight,
		m.RuleDuration,
		m.RuleErrorsTotal,
		m.FindingsTotal,
		m.CacheEvictionsTotal,
		m.AnalysisCacheHits,
		m.AnalysisCacheMisses,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveRule records one rule evaluation.
func (m *Metrics) ObserveRule(ruleID string, duration time.Duration, _ int, err error) {
	m.RuleDuration.WithLabelValues(ruleID).Observe(duration.Seconds())
	if err != nil {
		m.RuleErrorsTotal.WithLabelValues(ruleID).Inc()
	}
}

// ModuleStarted tracks a module entering evaluation.
func (m *Metrics) ModuleStarted(string) { m.ModulesInFlight.Inc() }

// ModuleFinished records a module evaluation.
func (m *Metrics) ModuleFinished(_ string, duration time.Duration, err error) {
	m.ModulesInFlight.Dec()
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModulesEvaluatedTotal.WithLabelValues(status).Inc()
	m.ModuleDuration.Observe(duration.Seconds())
}

// CacheEvicted counts a module analysis cache eviction.
func (m *Metrics) CacheEvicted(string) { m.CacheEvictionsTotal.Inc() }

// RunFinished records the outcome of a run and its findings.
func (m *Metrics) RunFinished(_ context.Context, outcome *finding.Outcome, duration time.Duration) {
	m.RunsTotal.WithLabelValues(OutcomeLabel(outcome)).Inc()
	m.RunDuration.Observe(duration.Seconds())
	for _, r := range outcome.Results {
		m.FindingsTotal.WithLabelValues(r.RuleID, strconv.FormatBool(r.Fixed)).Inc()
	}
}

// ObserveCache publishes the analysis store counters.
func (m *Metrics) ObserveCache(stats *storage.Stats) {
	if stats == nil {
		return
	}
	m.AnalysisCacheHits.Set(float64(stats.Hits))
	m.AnalysisCacheMisses.Set(float64(stats.Misses))
}

// OutcomeLabel classifies an outcome for the runs counter.
func OutcomeLabel(o *finding.Outcome) string {
	switch {
	case o.Err != nil:
		return OutcomeError
	case o.Failed():
		return OutcomeFailure
	default:
		return OutcomeSuccess
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests, labelling them by mux route template.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
