package rules

import (
	"context"
	"fmt"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// OvershotDependencyRule finds hidden dependencies that consumers need exposed.
type OvershotDependencyRule struct {
	BaseRule
}

// NewOvershotDependencyRule creates the overshot dependency rule
func NewOvershotDependencyRule(resolver *usage.Resolver, settings *linter.Settings) *OvershotDependencyRule {
	return &OvershotDependencyRule{
		BaseRule: newBaseRule(linter.RuleOvershotDependency, finding.Fixable,
			"Finds implementation dependencies which must be api because they appear in the public API", resolver, settings),
	}
}

// Check flags implementation project dependencies of shipping source sets whose
// declarations appear in the module's public signatures, or whose DI contributions
// are merged by a module depending on this one. The fix promotes the edge to api.
func (r *OvershotDependencyRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var out []*finding.Finding
	for _, dep := range m.Dependencies.Projects() {
		cfg := dep.Configuration
		if !cfg.IsKnown() || !cfg.IsImplementation() || cfg.SourceSet().IsTestingOnly() {
			continue
		}
		promoted := dep.WithConfiguration(cfg.APIVariant())
		if _, ok := m.Slot(promoted.Configuration); !ok || m.Dependencies.Contains(promoted) {
			continue
		}
		target, ok := r.workspace().Module(dep.Path)
		if !ok {
			continue
		}
		must, reason, err := r.mustBeAPI(ctx, m, cfg.SourceSet(), target, dep.TestFixture)
		if err != nil {
			return nil, err
		}
		if !must {
			continue
		}

		d := dep
		f := r.newFinding(m, fmt.Sprintf("The dependency %s should be %s because %s.", d, promoted.Configuration, reason))
		f.Dependency = &d
		f.Adds = []project.Dependency{promoted}
		f.Removes = []project.Dependency{d}
		locate(f, parsed, d)
		out = append(out, f)
	}
	return out, nil
}

func (r *OvershotDependencyRule) mustBeAPI(ctx context.Context, m *project.Module, ss project.SourceSetName, target *project.Module, fixtures bool) (bool, string, error) {
	decls, err := r.resolver.Declarations(ctx, target, fixtures)
	if err != nil {
		return false, "", err
	}
	for _, name := range append([]project.SourceSetName{ss}, m.Upstream(ss)...) {
		a, err := m.Analysis(ctx, name)
		if err != nil {
			return false, "", err
		}
		for refName, ref := range a.References {
			if !ref.API {
				continue
			}
			// own declarations shadow the dependency's
			if _, local := a.Declarations[refName]; local {
				continue
			}
			if _, ok := decls[refName]; ok {
				return true, "its types appear in public signatures", nil
			}
		}
	}

	provided, err := target.Analysis(ctx, project.Main)
	if err != nil {
		return false, "", err
	}
	if len(provided.Contributions) == 0 {
		return false, "", nil
	}
	for _, dependent := range r.workspace().Dependents(m.Path) {
		for _, dss := range consumingSourceSets(dependent, m.Path) {
			merged, err := r.resolver.MergedScopes(ctx, dependent, dss)
			if err != nil {
				return false, "", err
			}
			for scope := range provided.Contributions {
				if merged[scope] {
					return true, "its bindings are merged by " + dependent.Path, nil
				}
			}
		}
	}
	return false, "", nil
}
