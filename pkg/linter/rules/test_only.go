package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// TestOnlyDependencyRule finds dependencies declared for shipping code but only used by tests.
type TestOnlyDependencyRule struct {
	BaseRule
}

// NewTestOnlyDependencyRule creates the test-only dependency rule
func NewTestOnlyDependencyRule(resolver *usage.Resolver, settings *linter.Settings) *TestOnlyDependencyRule {
	return &TestOnlyDependencyRule{
		BaseRule: newBaseRule(linter.RuleTestOnlyDependency, finding.Fixable,
			"Finds main dependencies which are only used by downstream source sets such as tests", resolver, settings),
	}
}

// Check flags main project dependencies unused in main (and, when exposed, by every
// dependent) but used by a downstream source set. The fix moves the dependency to
// the implementation slot of each nearest using source set.
func (r *TestOnlyDependencyRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var out []*finding.Finding
	for _, dep := range m.Dependencies.Projects() {
		if !judged(dep) || dep.Configuration.SourceSet() != project.Main {
			continue
		}
		used, err := r.resolver.IsUsed(ctx, m, project.Main, dep)
		if err != nil {
			return nil, err
		}
		if used {
			continue
		}

		users, err := r.downstreamUsers(ctx, m, dep)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			continue
		}
		if m.IsExposed(dep.Configuration) {
			target, ok := r.workspace().Module(dep.Path)
			if !ok {
				continue
			}
			usedOutside, err := r.usedByDependents(ctx, m, target, dep.TestFixture)
			if err != nil {
				return nil, err
			}
			if usedOutside {
				continue
			}
		}

		d := dep
		names := make([]string, 0, len(users))
		f := r.newFinding(m, "")
		f.Dependency = &d
		f.Removes = []project.Dependency{d}
		for _, ss := range users {
			moved := d.WithConfiguration(ss.ImplementationConfig())
			names = append(names, string(moved.Configuration))
			if !m.Dependencies.Contains(moved) {
				f.Adds = append(f.Adds, moved)
			}
		}
		f.Message = fmt.Sprintf("The dependency %s is only used by %s.", d, strings.Join(names, ", "))
		locate(f, parsed, d)
		out = append(out, f)
	}
	return out, nil
}

// downstreamUsers returns the source sets downstream of main that use dep and do
// not inherit it from another using source set.
func (r *TestOnlyDependencyRule) downstreamUsers(ctx context.Context, m *project.Module, dep project.Dependency) ([]project.SourceSetName, error) {
	var using []project.SourceSetName
	for _, ss := range m.Downstream(project.Main) {
		used, err := r.resolver.IsUsed(ctx, m, ss, dep)
		if err != nil {
			return nil, err
		}
		if used {
			using = append(using, ss)
		}
	}

	var out []project.SourceSetName
	for _, ss := range using {
		nearest := true
		for _, other := range using {
			if other != ss && visibleIn(m, other, ss) {
				nearest = false
				break
			}
		}
		if nearest {
			out = append(out, ss)
		}
	}
	return out, nil
}
