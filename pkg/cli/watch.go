package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modcheck/pkg/api"
	"github.com/platinummonkey/modcheck/pkg/config"
	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/observability"
)

const defaultWatchAddr = ":9090"

type pinger interface {
	Ping(ctx context.Context) error
}

// newWatchCommand creates the watch command
func newWatchCommand(out io.Writer) *Command {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var (
		common   commonFlags
		addr     = fs.String("addr", "", "Status API listen address (default metricsAddr or :9090)")
		schedule = fs.String("schedule", "", `Cron schedule for periodic runs, e.g. "@every 30m"`)
		debounce = fs.Duration("debounce", 500*time.Millisecond, "Quiet period before a change triggers a run")
		noFix    = fs.Bool("no-fix", false, "Report findings without editing build files")
		timeout  = fs.Duration("run-timeout", api.DefaultRunTimeout, "Upper bound of a single run")
	)
	common.register(fs)

	return &Command{
		Name:        "watch",
		Description: "Re-run on changes and serve the status API",
		Flags:       fs,
		Out:         out,
		Run: func(ctx context.Context, args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			a, err := newApp(ctx, &common, func(cfg *config.Config) {
				if *noFix {
					cfg.AutoCorrect = false
				}
			})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			listen := *addr
			if listen == "" {
				listen = a.cfg.Observability.MetricsAddr
			}
			if listen == "" {
				listen = defaultWatchAddr
			}
			return runWatch(ctx, out, a, watchOptions{addr: listen, schedule: *schedule, debounce: *debounce, timeout: *timeout})
		},
	}
}

type watchOptions struct {
	addr     string
	schedule string
	debounce time.Duration
	timeout  time.Duration
}

func runWatch(ctx context.Context, out io.Writer, a *app, wo watchOptions) error {
	if err := a.openStore(); err != nil {
		return err
	}
	if err := a.openHistory(ctx); err != nil {
		return err
	}

	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	health := observability.NewHealthChecker(Version)
	if p, ok := a.history.(pinger); ok {
		health.AddCheck("history", true, p.Ping)
	}
	if p, ok := a.store.(pinger); ok {
		health.AddCheck("analysis-cache", false, p.Ping)
	}

	// reports of concurrent triggers must not interleave
	var outMu sync.Mutex
	trigger := func(ctx context.Context) *finding.Outcome {
		o := a.run(ctx)
		outMu.Lock()
		defer outMu.Unlock()
		if err := a.report(ctx, out, o, false); err != nil {
			a.log.WithError(err).Warn("failed to report run")
		}
		return o
	}

	opts := []api.Option{
		api.WithTrigger(trigger),
		api.WithGraphSource(func(ctx context.Context) (*dependencies.DependencyGraph, error) {
			ws, err := a.loadWorkspace(ctx)
			if err != nil {
				return nil, err
			}
			return ws.Graph(), nil
		}),
		api.WithMetrics(a.metrics, a.registry),
		api.WithHealthChecker(health),
		api.WithLogger(a.log),
		api.WithBaseContext(runCtx),
		api.WithRunTimeout(wo.timeout),
	}
	if a.history != nil {
		opts = append(opts, api.WithHistory(a.history))
	}
	srv := api.NewServer(opts...)

	httpServer := &http.Server{
		Addr:              wo.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdown := observability.NewShutdownManager(a.log, httpServer, 30*time.Second)
	shutdown.Register(func(ctx context.Context) error {
		cancelRuns()
		return srv.Wait(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", wo.addr).Info("status API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	start := func(reason string) {
		if srv.TryRun() {
			a.log.WithField("reason", reason).Info("run started")
			return
		}
		a.log.WithField("reason", reason).Debug("run already in progress")
	}

	if wo.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(wo.schedule, func() { start("schedule") }); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("invalid schedule %q: %w", wo.schedule, err)
		}
		c.Start()
		shutdown.Register(func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	w, err := newWatcher(a.root, wo.debounce, a.log, func() { start("change") })
	if err != nil {
		_ = httpServer.Close()
		return fmt.Errorf("failed to watch workspace: %w", err)
	}
	shutdown.Register(w.Close)
	go w.run(runCtx)

	start("startup")

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		select {
		case err := <-serveErr:
			a.log.WithError(err).Error("status API failed")
			stopWaiting()
		case <-waitCtx.Done():
		}
	}()
	if err := shutdown.Wait(waitCtx); err != nil && !isCanceled(err) {
		return err
	}
	a.log.WithFields(logrus.Fields{"root": a.root}).Info("watch stopped")
	return nil
}
