package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modcheck/pkg/config"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/fix"
	"github.com/platinummonkey/modcheck/pkg/history"
	"github.com/platinummonkey/modcheck/pkg/observability"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/report"
	"github.com/platinummonkey/modcheck/pkg/runner"
	"github.com/platinummonkey/modcheck/pkg/source"
	"github.com/platinummonkey/modcheck/pkg/storage"
	"github.com/platinummonkey/modcheck/pkg/webhooks"
	"github.com/platinummonkey/modcheck/pkg/workspace"
)

// commonFlags are shared by every command that reads a workspace.
type commonFlags struct {
	dir       string
	logLevel  string
	logFormat string
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.dir, "dir", ".", "Workspace root directory")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
}

// app holds the process-wide collaborators of one command invocation.
type app struct {
	root        string
	cfg         *config.Config
	log         *logrus.Logger
	registry    *prometheus.Registry
	metrics     *observability.Metrics
	otel        *observability.OTelProviders
	otelMetrics *observability.OTelMetrics
	store       storage.Store
	history     history.Store
}

// newApp loads the configuration of flags.dir. override runs after the file
// and environment are applied and before validation.
func newApp(ctx context.Context, flags *commonFlags, override func(*config.Config)) (*app, error) {
	root, err := filepath.Abs(flags.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.LogFormat = flags.logFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		root:     root,
		cfg:      cfg,
		log:      observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, nil),
		registry: prometheus.NewRegistry(),
	}
	a.metrics = observability.NewMetrics(a.registry)
	if cfg.Path != "" {
		a.log.WithField("path", cfg.Path).Debug("loaded configuration")
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    "modcheck",
		ServiceVersion: Version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, a.log)
	if err != nil {
		a.log.WithError(err).Warn("failed to initialize OpenTelemetry, continuing without it")
	} else if providers != nil {
		a.otel = providers
		if a.otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			a.log.WithError(err).Warn("failed to create OpenTelemetry metrics")
		}
	}
	return a, nil
}

// openStore opens the analysis cache.
func (a *app) openStore() error {
	store, err := storage.New(a.cfg.Analysis.Cache)
	if err != nil {
		return fmt.Errorf("failed to open analysis cache: %w", err)
	}
	a.store = store
	return nil
}

// openHistory opens the run history when a DSN is configured.
func (a *app) openHistory(ctx context.Context) error {
	if a.cfg.History.DSN == "" {
		return nil
	}
	store, err := history.Open(ctx, a.cfg.History.Driver, a.cfg.History.DSN)
	if err != nil {
		return err
	}
	a.history = store
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close analysis cache")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close run history")
		}
	}
	if a.otel != nil {
		_ = observability.ShutdownOTel(ctx, a.otel, a.log)
	}
}

// loadWorkspace reads the workspace. Source analysis is attached only when
// a store is open.
func (a *app) loadWorkspace(ctx context.Context) (*project.Workspace, error) {
	opts := []workspace.Option{
		workspace.WithHostToolVersion(a.cfg.HostToolVersion),
		workspace.WithLogger(a.log),
	}
	if a.store != nil {
		opts = append(opts, workspace.WithAnalyzer(source.NewAnalyzer(
			source.WithStore(a.store),
			source.WithParseWorkers(a.cfg.Analysis.ParseWorkers),
			source.WithLogger(a.log),
		)))
	}
	return workspace.NewLoader(opts...).Load(ctx, a.root)
}

func (a *app) newRunner(ws *project.Workspace) (*runner.Runner, error) {
	settings, err := a.cfg.Settings()
	if err != nil {
		return nil, err
	}
	strategy := fix.CommentOut
	if a.cfg.DeleteUnused {
		strategy = fix.Delete
	}

	opts := []runner.Option{
		runner.WithSettings(settings),
		runner.WithCodeGenerators(a.cfg.CodeGenerators()),
		runner.WithAutoCorrect(a.cfg.AutoCorrect),
		runner.WithStrategy(strategy),
		runner.WithConcurrency(a.cfg.Analysis.Concurrency),
		runner.WithLogger(a.log),
		runner.WithRuleObserver(a.metrics),
		runner.WithQueueObserver(a.metrics),
		runner.WithRunObserver(a.metrics),
	}
	if a.otelMetrics != nil {
		opts = append(opts, runner.WithRunObserver(a.otelMetrics))
	}
	if a.history != nil {
		opts = append(opts, runner.WithRunObserver(history.NewRecorder(a.history, a.root, a.log)))
	}
	if len(a.cfg.Webhooks) > 0 {
		opts = append(opts, runner.WithRunObserver(webhooks.NewNotifier(a.root, a.cfg.Webhooks, webhooks.WithLogger(a.log))))
	}
	return runner.New(ws, opts...), nil
}

// run loads the workspace afresh and runs it. Load failures become the
// outcome's fatal error.
func (a *app) run(ctx context.Context) *finding.Outcome {
	ws, err := a.loadWorkspace(ctx)
	if err != nil {
		return finding.NewOutcome(uuid.NewString(), nil, nil, err)
	}
	r, err := a.newRunner(ws)
	if err != nil {
		return finding.NewOutcome(uuid.NewString(), nil, nil, err)
	}
	o := r.Run(ctx)
	if a.store != nil {
		if stats, err := a.store.Stats(ctx); err == nil {
			a.metrics.ObserveCache(stats)
		}
	}
	return o
}

// report renders o to out in the configured format, writes the JSON document
// to the output file and uploads it to S3 when configured.
func (a *app) report(ctx context.Context, out io.Writer, o *finding.Outcome, verbose bool) error {
	renderer, err := report.NewRenderer(a.cfg.Reports.Format, report.WithRoot(a.root), report.WithVerbose(verbose))
	if err != nil {
		return err
	}
	if err := renderer.Render(out, o); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if a.cfg.Reports.Output != "" {
		var buf bytes.Buffer
		if err := (report.JSONRenderer{}).Render(&buf, o); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		if err := os.WriteFile(a.cfg.Reports.Output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if a.cfg.Reports.S3.Enabled() {
		publisher, err := report.NewS3Publisher(ctx, a.cfg.Reports.S3)
		if err != nil {
			return err
		}
		key, err := publisher.Publish(ctx, o)
		if err != nil {
			return err
		}
		a.log.WithFields(logrus.Fields{"bucket": a.cfg.Reports.S3.Bucket, "key": key}).Info("published report")
	}
	return nil
}

// checkResult maps an outcome to the command error.
func checkResult(o *finding.Outcome) error {
	if o.Err != nil {
		return o.Err
	}
	if o.Failed() {
		return fmt.Errorf("%w: %d unfixed, %d module errors", ErrCheckFailed, o.Unfixed, len(o.ModuleErrors))
	}
	return nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
