package rules

import (
	"context"
	"fmt"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// RedundantDependencyRule finds direct dependencies already provided by another direct dependency.
type RedundantDependencyRule struct {
	BaseRule
}

// NewRedundantDependencyRule creates the redundant dependency rule
func NewRedundantDependencyRule(resolver *usage.Resolver, settings *linter.Settings) *RedundantDependencyRule {
	return &RedundantDependencyRule{
		BaseRule: newBaseRule(linter.RuleRedundantDependency, finding.Fixable,
			"Finds project dependencies which are already inherited through another declared dependency", resolver, settings),
	}
}

// Check flags a direct project dependency when another direct dependency visible
// from the same source set reaches it through exposed edges. An exposed dependency
// is only redundant when the providing edge is exposed as well.
func (r *RedundantDependencyRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	deps := m.Dependencies.Projects()
	var out []*finding.Finding
	for _, dep := range deps {
		if !judged(dep) {
			continue
		}
		ss := dep.Configuration.SourceSet()
		source, ok := r.providedBy(m, dep, ss, deps)
		if !ok {
			continue
		}
		d := dep
		f := r.newFinding(m, fmt.Sprintf("The dependency %s is already provided by %s.", d, source))
		f.Dependency = &d
		f.Source = &source
		f.Removes = []project.Dependency{d}
		locate(f, parsed, d)
		out = append(out, f)
	}
	return out, nil
}

func (r *RedundantDependencyRule) providedBy(m *project.Module, dep project.Dependency, ss project.SourceSetName, deps []project.Dependency) (project.Dependency, bool) {
	exposed := m.IsExposed(dep.Configuration)
	for _, other := range deps {
		if other.Key() == dep.Key() || other.Path == dep.Path || !judged(other) {
			continue
		}
		if !visibleIn(m, other.Configuration.SourceSet(), ss) {
			continue
		}
		if exposed && !m.IsExposed(other.Configuration) {
			continue
		}
		for _, edge := range r.exposedClosure(other) {
			if edge.Dependency.Path == dep.Path && edge.Dependency.TestFixture == dep.TestFixture {
				return other, true
			}
		}
	}
	return project.Dependency{}, false
}
