// Package runner drives one modcheck run over a loaded workspace: the scheduler
// evaluates every module, findings are arbitrated, the accepted ones are written
// into build descriptors, and the results are folded into a finding.Outcome.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/fix"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/linter/rules"
	"github.com/platinummonkey/modcheck/pkg/observability"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/queue"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

var runTracer = otel.Tracer("modcheck/runner")

// RunObserver is notified once per finished run.
type RunObserver interface {
	RunFinished(ctx context.Context, outcome *finding.Outcome, duration time.Duration)
}

// Runner evaluates and fixes a workspace.
type Runner struct {
	ws          *project.Workspace
	settings    *linter.Settings
	generators  usage.CodeGenerators
	autoCorrect bool
	strategy    fix.Strategy
	concurrency int
	log         logrus.FieldLogger

	ruleObserver  linter.RuleObserver
	queueObserver queue.Observer
	runObservers  []RunObserver
	extraRules    []linter.Rule
}

// Option configures a Runner.
type Option func(*Runner)

// WithSettings sets the rule settings. The default is linter.DefaultSettings.
func WithSettings(s *linter.Settings) Option {
	return func(r *Runner) {
		if s != nil {
			r.settings = s
		}
	}
}

// WithCodeGenerators replaces the known code generators.
func WithCodeGenerators(g usage.CodeGenerators) Option {
	return func(r *Runner) { r.generators = g }
}

// WithAutoCorrect enables writing fixes into descriptors.
func WithAutoCorrect(enabled bool) Option {
	return func(r *Runner) { r.autoCorrect = enabled }
}

// WithStrategy selects how removed statements are written.
func WithStrategy(s fix.Strategy) Option {
	return func(r *Runner) { r.strategy = s }
}

// WithConcurrency caps the modules evaluated or fixed at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRuleObserver is notified after every rule evaluation.
func WithRuleObserver(o linter.RuleObserver) Option {
	return func(r *Runner) { r.ruleObserver = o }
}

// WithQueueObserver is notified about module scheduling.
func WithQueueObserver(o queue.Observer) Option {
	return func(r *Runner) { r.queueObserver = o }
}

// WithRunObserver adds an observer of finished runs.
func WithRunObserver(o RunObserver) Option {
	return func(r *Runner) {
		if o != nil {
			r.runObservers = append(r.runObservers, o)
		}
	}
}

// WithRules registers rules in addition to the built-in ones.
func WithRules(extra ...linter.Rule) Option {
	return func(r *Runner) { r.extraRules = append(r.extraRules, extra...) }
}

// New creates a runner for ws. Auto-correct is on by default.
func New(ws *project.Workspace, opts ...Option) *Runner {
	r := &Runner{
		ws:          ws,
		settings:    linter.DefaultSettings(),
		generators:  usage.NewCodeGenerators(),
		autoCorrect: true,
		strategy:    fix.CommentOut,
		log:         logrus.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workspace returns the workspace the runner operates on.
func (r *Runner) Workspace() *project.Workspace { return r.ws }

// Run evaluates every module, applies the accepted fixes when auto-correct is on
// and returns the outcome. It never returns nil; fatal conditions such as a
// dependency cycle or cancellation are carried in Outcome.Err.
func (r *Runner) Run(ctx context.Context) *finding.Outcome {
	runID := uuid.NewString()
	start := time.Now()
	ctx = observability.WithLogger(observability.WithRunID(ctx, runID), r.log)

	ctx, span := runTracer.Start(ctx, "runner.Run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("modules", r.ws.Len()),
		attribute.Bool("auto_correct", r.autoCorrect),
	))
	defer span.End()

	log := observability.FromContext(ctx)
	outcome := r.run(ctx, runID, log)

	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "run failed")
	}
	span.SetAttributes(
		attribute.Int("results", len(outcome.Results)),
		attribute.Int("unfixed", outcome.Unfixed),
	)

	duration := time.Since(start)
	for _, o := range r.runObservers {
		o.RunFinished(ctx, outcome, duration)
	}

	log.WithFields(logrus.Fields{
		"results":       len(outcome.Results),
		"fixed":         outcome.Fixed(),
		"unfixed":       outcome.Unfixed,
		"module_errors": len(outcome.ModuleErrors),
		"duration":      duration,
	}).Info("run finished")
	return outcome
}

func (r *Runner) run(ctx context.Context, runID string, log logrus.FieldLogger) *finding.Outcome {
	engine := r.engine(log)

	var (
		mu           sync.Mutex
		findings     []*finding.Finding
		suppressions = make(map[string]finding.Suppressions)
		moduleErrors []finding.ModuleError
	)

	scheduler := queue.New(r.ws,
		queue.WithConcurrency(r.concurrency),
		queue.WithLogger(log),
		queue.WithObserver(r.queueObserver),
	)
	err := scheduler.Run(ctx, func(ctx context.Context, m *project.Module) error {
		eval, err := engine.Evaluate(ctx, m)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.WithField("module", m.Path).WithError(err).Warn("module could not be evaluated")
			mu.Lock()
			moduleErrors = append(moduleErrors, finding.ModuleError{Module: m.Path, Err: err})
			mu.Unlock()
			return nil
		}
		mu.Lock()
		findings = append(findings, eval.Findings...)
		suppressions[m.Path] = eval.Suppressions
		mu.Unlock()
		return nil
	})
	if err != nil {
		return finding.NewOutcome(runID, nil, moduleErrors, err)
	}

	accepted := finding.Arbitrate(findings, suppressions)
	log.WithFields(logrus.Fields{
		"findings": len(findings),
		"accepted": len(accepted),
	}).Debug("findings arbitrated")

	fixed := make(map[*finding.Finding]bool, len(accepted))
	if r.autoCorrect {
		fixErrs, err := r.applyFixes(ctx, accepted, fixed, log)
		moduleErrors = append(moduleErrors, fixErrs...)
		if err != nil {
			return finding.NewOutcome(runID, nil, moduleErrors, err)
		}
	}

	results := make([]finding.Result, 0, len(accepted))
	for _, f := range accepted {
		res := finding.NewResult(f, fixed[f])
		if m, ok := r.ws.Module(f.Module); ok && m.Descriptor != nil {
			res.File = m.Descriptor.Path()
		}
		results = append(results, res)
	}
	return finding.NewOutcome(runID, results, moduleErrors, nil)
}

func (r *Runner) engine(log logrus.FieldLogger) *linter.Engine {
	resolver := usage.New(r.ws, usage.WithCodeGenerators(r.generators), usage.WithLogger(log))
	registry := linter.NewRuleRegistry()
	rules.RegisterDefaultRules(registry, resolver, r.settings)
	for _, rule := range r.extraRules {
		registry.Register(rule)
	}
	opts := []linter.EngineOption{linter.WithEngineLogger(log)}
	if r.ruleObserver != nil {
		opts = append(opts, linter.WithRuleObserver(r.ruleObserver))
	}
	return linter.NewEngine(r.settings, registry, opts...)
}

// applyFixes writes the accepted findings. Modules are fixed concurrently while
// the findings of one module are applied in arbitration order. A descriptor
// failure stops that module's fixes and is returned as a module error.
func (r *Runner) applyFixes(ctx context.Context, accepted []*finding.Finding, fixed map[*finding.Finding]bool,
	log logrus.FieldLogger) ([]finding.ModuleError, error) {

	applicator := fix.NewApplicator(r.ws,
		fix.WithStrategy(r.strategy),
		fix.WithSettings(r.settings),
		fix.WithLogger(log),
	)

	var order []string
	byModule := make(map[string][]*finding.Finding)
	for _, f := range accepted {
		if _, ok := byModule[f.Module]; !ok {
			order = append(order, f.Module)
		}
		byModule[f.Module] = append(byModule[f.Module], f)
	}

	var (
		mu           sync.Mutex
		moduleErrors []finding.ModuleError
	)
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	} else {
		g.SetLimit(queue.DefaultConcurrency())
	}
	for _, path := range order {
		path := path
		g.Go(func() error {
			for _, f := range byModule[path] {
				if err := gctx.Err(); err != nil {
					return err
				}
				ok, err := applicator.Apply(gctx, f)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					log.WithField("module", path).WithError(err).Warn("descriptor could not be written")
					mu.Lock()
					moduleErrors = append(moduleErrors, finding.ModuleError{Module: path, Err: err})
					mu.Unlock()
					return nil
				}
				mu.Lock()
				fixed[f] = ok
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return moduleErrors, err
}
