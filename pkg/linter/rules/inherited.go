package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// InheritedDependencyRule finds modules using code that only arrives transitively.
type InheritedDependencyRule struct {
	BaseRule
}

// NewInheritedDependencyRule creates the inherited dependency rule
func NewInheritedDependencyRule(resolver *usage.Resolver, settings *linter.Settings) *InheritedDependencyRule {
	return &InheritedDependencyRule{
		BaseRule: newBaseRule(linter.RuleInheritedDependency, finding.Fixable,
			"Finds project dependencies which are used in the module but only inherited through another dependency", resolver, settings),
	}
}

// Check walks the exposed chains behind every direct project dependency and flags
// reached modules the source set uses without declaring. The proposed dependency
// takes the slot kind of the direct edge it was inherited through.
func (r *InheritedDependencyRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}
	sourceSets, err := analyzedSourceSets(ctx, m)
	if err != nil {
		return nil, err
	}
	// upstream source sets first, so that a main addition covers its tests
	sort.SliceStable(sourceSets, func(i, j int) bool {
		return len(m.Upstream(sourceSets[i])) < len(m.Upstream(sourceSets[j]))
	})

	added := make(map[string][]project.SourceSetName)
	var out []*finding.Finding
	for _, ss := range sourceSets {
		for _, direct := range m.Dependencies.Projects() {
			if !judged(direct) || !visibleIn(m, direct.Configuration.SourceSet(), ss) {
				continue
			}
			for _, edge := range r.exposedClosure(direct) {
				dep := edge.Dependency
				key := dep.Path
				if dep.TestFixture {
					key += "|fixtures"
				}
				if dep.Path == m.Path || declaresIn(m, ss, dep.Path, dep.TestFixture) || coveredBy(m, ss, added[key]) {
					continue
				}
				target, ok := r.workspace().Module(dep.Path)
				if !ok {
					continue
				}
				used, err := r.resolver.Uses(ctx, m, ss, target, dep.TestFixture)
				if err != nil {
					return nil, err
				}
				if !used {
					continue
				}

				proposed := dep.WithConfiguration(inheritedConfig(ss, direct.Configuration))
				source := edge.Source
				f := r.newFinding(m, fmt.Sprintf("%s is used here but only inherited through %s; declare it directly.", dep.Path, source))
				f.Dependency = &proposed
				f.Source = &source
				f.Adds = []project.Dependency{proposed}
				locate(f, parsed, source)
				out = append(out, f)
				added[key] = append(added[key], ss)
			}
		}
	}
	return out, nil
}

// inheritedConfig maps the slot kind of the source edge onto ss. Testing-only source
// sets have no exposed slot.
func inheritedConfig(ss project.SourceSetName, source project.ConfigurationName) project.ConfigurationName {
	base := source.Base()
	if base != project.API && base != project.Implementation && base != project.CompileOnly {
		base = project.API
	}
	if base == project.API && ss.IsTestingOnly() {
		base = project.Implementation
	}
	return ss.Config(base)
}

func coveredBy(m *project.Module, ss project.SourceSetName, done []project.SourceSetName) bool {
	for _, d := range done {
		if visibleIn(m, d, ss) {
			return true
		}
	}
	return false
}
