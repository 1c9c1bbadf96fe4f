package fix

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
)

var fixTracer = otel.Tracer("modcheck/fix")

// errUnfixable marks findings the applicator cannot express as an edit.
var errUnfixable = errors.New("finding cannot be applied")

// Strategy selects how removed statements disappear from a descriptor.
type Strategy int

const (
	// CommentOut keeps the statement as a labelled line comment.
	CommentOut Strategy = iota
	// Delete removes the statement and its attached comments.
	Delete
)

func (s Strategy) String() string {
	if s == Delete {
		return "delete"
	}
	return "comment-out"
}

// Applicator writes findings into build descriptors.
type Applicator struct {
	ws       *project.Workspace
	settings *linter.Settings
	strategy Strategy
	log      logrus.FieldLogger
}

// Option configures an Applicator.
type Option func(*Applicator)

// WithStrategy sets the removal strategy. The default comments statements out.
func WithStrategy(s Strategy) Option {
	return func(a *Applicator) { a.strategy = s }
}

// WithSettings supplies the comparators used to rewrite sorted blocks.
func WithSettings(s *linter.Settings) Option {
	return func(a *Applicator) {
		if s != nil {
			a.settings = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Applicator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewApplicator creates an applicator for modules of ws.
func NewApplicator(ws *project.Workspace, opts ...Option) *Applicator {
	a := &Applicator{
		ws:       ws,
		settings: linter.DefaultSettings(),
		strategy: CommentOut,
		log:      logrus.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strategy returns the removal strategy.
func (a *Applicator) Strategy() Strategy { return a.strategy }

// Apply writes f into its module's descriptor and reports whether the finding is
// now fixed. Findings that cannot be located or expressed return false without an
// error; the error is reserved for descriptor I/O failures.
func (a *Applicator) Apply(ctx context.Context, f *finding.Finding) (fixed bool, err error) {
	if f.Kind == finding.ReportOnly {
		return false, nil
	}
	m, ok := a.ws.Module(f.Module)
	if !ok {
		a.log.WithField("module", f.Module).Warn("finding for unknown module")
		return false, nil
	}

	ctx, span := fixTracer.Start(ctx, "fix.Apply", trace.WithAttributes(
		attribute.String("module", f.Module),
		attribute.String("rule", f.RuleID),
		attribute.String("category", f.Category().String()),
	))
	defer span.End()

	if err := m.Lock(ctx); err != nil {
		return false, err
	}
	defer m.Unlock()

	switch f.Category() {
	case finding.CategoryAdd, finding.CategoryModify, finding.CategoryRemove:
		err = a.applyDependencies(ctx, m, f)
	case finding.CategoryEdit:
		err = a.applyEdit(ctx, m, f)
	case finding.CategorySort:
		err = a.applySort(ctx, m, f)
	default:
		err = errUnfixable
	}

	log := a.log.WithFields(logrus.Fields{
		"module": f.Module,
		"rule":   f.RuleID,
		"target": f.Identifier(),
	})
	switch {
	case err == nil:
		log.Debug("applied fix")
		return true, nil
	case errors.Is(err, descriptor.ErrStatementNotFound), errors.Is(err, errUnfixable):
		log.WithError(err).Debug("fix not applied")
		return false, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write descriptor")
		return false, fmt.Errorf("failed to apply %s to %s: %w", f.RuleID, f.Module, err)
	}
}

func (a *Applicator) applyDependencies(ctx context.Context, m *project.Module, f *finding.Finding) error {
	kotlin := m.Descriptor.IsKotlin()
	err := m.Descriptor.Update(ctx, func(text string) (string, error) {
		for _, dep := range f.Adds {
			text = insertDependency(text, kotlin, dep, f.Source)
		}
		for _, dep := range f.Removes {
			var err error
			if text, err = removeDependency(text, kotlin, dep, f.RuleID, a.strategy); err != nil {
				return "", err
			}
		}
		return text, nil
	})
	if err != nil {
		return err
	}
	for _, dep := range f.Adds {
		m.Dependencies.Add(dep)
	}
	for _, dep := range f.Removes {
		m.Dependencies.Remove(dep)
	}
	return nil
}

func (a *Applicator) applyEdit(ctx context.Context, m *project.Module, f *finding.Finding) error {
	kotlin := m.Descriptor.IsKotlin()
	var parsed *descriptor.Parsed
	err := m.Descriptor.Update(ctx, func(text string) (string, error) {
		var (
			out string
			err error
		)
		switch {
		case f.Plugin != "":
			out, err = removePlugin(text, kotlin, f.Plugin, f.RuleID, a.strategy)
		case f.Feature != "":
			out = setFeature(text, kotlin, f.Feature, f.FeatureValue)
		default:
			err = errUnfixable
		}
		if err != nil {
			return "", err
		}
		parsed = descriptor.Parse(out, kotlin)
		return out, nil
	})
	if err != nil {
		return err
	}
	m.RefreshPlatform(parsed)
	return nil
}

func (a *Applicator) applySort(ctx context.Context, m *project.Module, f *finding.Finding) error {
	comparators, grouped := a.settings.DependencyComparators, true
	if f.Block == "plugins" {
		comparators, grouped = a.settings.PluginComparators, false
	}
	kotlin := m.Descriptor.IsKotlin()
	return m.Descriptor.Update(ctx, func(text string) (string, error) {
		parsed := descriptor.Parse(text, kotlin)
		blocks := parsed.Dependencies
		if f.Block == "plugins" {
			blocks = nil
			if parsed.Plugins != nil {
				blocks = []*descriptor.Block{parsed.Plugins}
			}
		}
		sorted := false
		// back to front so earlier offsets stay valid
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			content, ok := descriptor.SortedContent(text, b, comparators, grouped)
			if !ok {
				continue
			}
			text = text[:b.ContentStart] + content + text[b.ContentEnd:]
			sorted = true
		}
		if !sorted {
			return "", errUnfixable
		}
		return text, nil
	})
}
