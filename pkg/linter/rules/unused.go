package rules

import (
	"context"
	"fmt"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// UnusedDependencyRule finds declared project dependencies nothing references.
type UnusedDependencyRule struct {
	BaseRule
}

// NewUnusedDependencyRule creates the unused dependency rule
func NewUnusedDependencyRule(resolver *usage.Resolver, settings *linter.Settings) *UnusedDependencyRule {
	return &UnusedDependencyRule{
		BaseRule: newBaseRule(linter.RuleUnusedDependency, finding.Fixable,
			"Finds project dependencies which are not used in the declaring module", resolver, settings),
	}
}

// Check flags every project dependency unused in its own source set and in every
// downstream source set. An exposed dependency is only flagged when no dependent
// module uses it either.
func (r *UnusedDependencyRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var out []*finding.Finding
	for _, dep := range m.Dependencies.Projects() {
		if !judged(dep) || r.settings.IgnoresUnused(dep.Path) {
			continue
		}
		unused, err := r.unused(ctx, m, dep)
		if err != nil {
			return nil, err
		}
		if !unused {
			continue
		}
		d := dep
		f := r.newFinding(m, fmt.Sprintf("The declared dependency %s is not used in this module.", d))
		f.Dependency = &d
		f.Removes = []project.Dependency{d}
		locate(f, parsed, d)
		out = append(out, f)
	}
	return out, nil
}

func (r *UnusedDependencyRule) unused(ctx context.Context, m *project.Module, dep project.Dependency) (bool, error) {
	ss := dep.Configuration.SourceSet()
	for _, name := range append([]project.SourceSetName{ss}, m.Downstream(ss)...) {
		used, err := r.resolver.IsUsed(ctx, m, name, dep)
		if err != nil || used {
			return false, err
		}
	}
	if !m.IsExposed(dep.Configuration) {
		return true, nil
	}
	target, ok := r.workspace().Module(dep.Path)
	if !ok {
		return false, nil
	}
	used, err := r.usedByDependents(ctx, m, target, dep.TestFixture)
	return !used, err
}
