package linter

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/modcheck/pkg/async"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/project"
)

var engineTracer = otel.Tracer("modcheck/linter/engine")

// RuleObserver is notified after every rule evaluation.
type RuleObserver interface {
	ObserveRule(ruleID string, duration time.Duration, findings int, err error)
}

// Engine evaluates the enabled rules against one module at a time.
type Engine struct {
	settings *Settings
	registry *RuleRegistry
	log      logrus.FieldLogger
	observer RuleObserver
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithRuleObserver installs a rule observer such as the metrics recorder.
func WithRuleObserver(o RuleObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine over registry. A nil settings uses DefaultSettings.
func NewEngine(settings *Settings, registry *RuleRegistry, opts ...EngineOption) *Engine {
	if settings == nil {
		settings = DefaultSettings()
	}
	if registry == nil {
		registry = NewRuleRegistry()
	}
	e := &Engine{settings: settings, registry: registry, log: logrus.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the rule registry.
func (e *Engine) Registry() *RuleRegistry { return e.registry }

// Settings returns the engine settings.
func (e *Engine) Settings() *Settings { return e.settings }

// Evaluation holds the findings of one module and the suppressions declared in its descriptor.
type Evaluation struct {
	Module       string
	Findings     []*finding.Finding
	Suppressions finding.Suppressions
}

// Evaluate runs every enabled rule against m. Rules run concurrently and read only
// the model and memoized analyses. Findings keep rule order. A panicking rule is
// reported as an error. An error means the module could not be evaluated at all.
func (e *Engine) Evaluate(ctx context.Context, m *project.Module) (*Evaluation, error) {
	ctx, span := engineTracer.Start(ctx, "Evaluate",
		trace.WithAttributes(attribute.String("module", m.Path)),
	)
	defer span.End()

	eval := &Evaluation{Module: m.Path, Suppressions: make(finding.Suppressions)}
	if e.settings.Skips(m.Path) {
		e.log.WithField("module", m.Path).Debug("module excluded from evaluation")
		return eval, nil
	}

	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read descriptor")
		return nil, err
	}
	eval.Suppressions = finding.SuppressionsFromDescriptor(parsed)

	rules := e.registry.GetEnabledRules(e.settings)
	results := make([][]*finding.Finding, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			start := time.Now()
			var found []*finding.Finding
			err := async.Recover("rule "+rule.ID()+" on "+m.Path, func() error {
				var err error
				found, err = rule.Check(gctx, m)
				return err
			})
			if e.observer != nil {
				e.observer.ObserveRule(rule.ID(), time.Since(start), len(found), err)
			}
			if err != nil {
				return fmt.Errorf("rule %s on %s: %w", rule.ID(), m.Path, err)
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule evaluation failed")
		return nil, err
	}

	for _, found := range results {
		eval.Findings = append(eval.Findings, found...)
	}
	span.SetAttributes(attribute.Int("findings", len(eval.Findings)))
	e.log.WithFields(logrus.Fields{
		"module":   m.Path,
		"rules":    len(rules),
		"findings": len(eval.Findings),
	}).Debug("module evaluated")
	return eval, nil
}
