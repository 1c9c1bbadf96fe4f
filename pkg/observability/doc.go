/*
Package observability sets up logging, metrics and tracing for modcheck.

# Logging

NewLogger builds the process logger on logrus, with a text formatter by default
and a JSON formatter for machine consumption:

	log := observability.NewLogger("debug", "json", os.Stderr)
	log.WithField("module", ":app").Info("evaluated module")

WithTraceContext adds the trace and span ids of the current span to a logger.

# Metrics

Metrics registers the modcheck_* Prometheus collectors. It implements the rule
observer of the linter engine and the module observer of the scheduler, and
records run outcomes:

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	engine := linter.NewEngine(settings, registry, linter.WithRuleObserver(metrics))

Exposed metrics:

  - modcheck_runs_total{outcome}
  - modcheck_run_duration_seconds
  - modcheck_modules_evaluated_total{status}
  - modcheck_module_duration_seconds
  - modcheck_rule_duration_seconds{rule}
  - modcheck_rule_errors_total{rule}
  - modcheck_findings_total{rule,fixed}
  - modcheck_cache_evictions_total
  - modcheck_analysis_cache_hits, modcheck_analysis_cache_misses
  - modcheck_http_requests_total{method,route,status}, modcheck_http_request_duration_seconds{method,route}

# Tracing

InitOTel installs OTLP gRPC trace and metric exporters when enabled. Spans are
created per run, per module and per rule; OTelMetrics mirrors the run counters
for collectors that do not scrape Prometheus.

# Health and shutdown

HealthChecker serves liveness and readiness probes over named checks such as the
history database and the Redis analysis cache. ShutdownManager stops the watch
server and runs registered cleanup functions on SIGINT or SIGTERM.
*/
package observability
