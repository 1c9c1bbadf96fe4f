package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/modcheck/pkg/async"
	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/history"
	"github.com/platinummonkey/modcheck/pkg/httputil"
	"github.com/platinummonkey/modcheck/pkg/observability"
)

// maxBodyBytes bounds request bodies; the API accepts no payloads beyond small JSON.
const maxBodyBytes = 1 << 20

// DefaultRunTimeout bounds a triggered run.
const DefaultRunTimeout = 30 * time.Minute

// Trigger executes one run.
type Trigger func(ctx context.Context) *finding.Outcome

// Server represents the status API server
type Server struct {
	router   *mux.Router
	history  history.Store
	trigger  Trigger
	graph    dependencies.GraphSource
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	log      logrus.FieldLogger
	baseCtx  context.Context
	timeout  time.Duration

	running atomic.Bool
	runs    sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves recorded runs from store.
func WithHistory(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithTrigger enables POST /v1/runs.
func WithTrigger(t Trigger) Option {
	return func(s *Server) { s.trigger = t }
}

// WithGraphSource mounts the module graph routes.
func WithGraphSource(source dependencies.GraphSource) Option {
	return func(s *Server) { s.graph = source }
}

// WithHealthChecker replaces the default health checker.
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics instruments requests and serves gatherer on /metrics.
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithLogger sets the server logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithBaseContext sets the context triggered runs derive from. Cancelling it
// cancels an active run.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.baseCtx = ctx }
}

// WithRunTimeout bounds every triggered run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates a new API server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		log:     logrus.StandardLogger(),
		baseCtx: context.Background(),
		timeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = observability.NewHealthChecker("")
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.log),
		httputil.LoggingMiddleware(s.log),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	if s.gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods("GET")
	}

	s.router.HandleFunc("/v1/runs", s.listRuns).Methods("GET")
	s.router.HandleFunc("/v1/runs", s.startRun).Methods("POST")
	s.router.HandleFunc("/v1/runs/latest", s.latestRun).Methods("GET")
	s.router.HandleFunc("/v1/runs/{id}", s.getRun).Methods("GET")

	if s.graph != nil {
		dependencies.NewDependencyHandlers(s.graph).RegisterRoutes(s.router)
	}
}

// ServeHTTP implements http.Handler without tracing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in OpenTelemetry HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "modcheck-api")
}

// Running reports whether a triggered run is in progress.
func (s *Server) Running() bool { return s.running.Load() }

// Wait blocks until triggered runs finish or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryRun starts trigger in the background unless a run is already active.
// It reports whether a run was started.
func (s *Server) TryRun() bool {
	if s.trigger == nil || !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.runs.Add(1)
	async.SafeGoNoError(s.baseCtx, s.timeout, "triggered run", func(ctx context.Context) {
		defer s.runs.Done()
		defer s.running.Store(false)
		o := s.trigger(ctx)
		if o != nil && o.Err != nil && !errors.Is(o.Err, context.Canceled) {
			s.log.WithField("run_id", o.RunID).WithError(o.Err).Warn("triggered run failed")
		}
	})
	return true
}
