package rules

import (
	"context"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// BaseRule provides common functionality for rules
type BaseRule struct {
	RuleID          string
	RuleKind        finding.Kind
	RuleDescription string

	resolver *usage.Resolver
	settings *linter.Settings
}

func newBaseRule(id string, kind finding.Kind, description string, resolver *usage.Resolver, settings *linter.Settings) BaseRule {
	if settings == nil {
		settings = linter.DefaultSettings()
	}
	return BaseRule{
		RuleID:          id,
		RuleKind:        kind,
		RuleDescription: description,
		resolver:        resolver,
		settings:        settings,
	}
}

func (r *BaseRule) ID() string          { return r.RuleID }
func (r *BaseRule) Kind() finding.Kind  { return r.RuleKind }
func (r *BaseRule) Description() string { return r.RuleDescription }

func (r *BaseRule) workspace() *project.Workspace { return r.resolver.Workspace() }

// newFinding fills in the fields shared by every finding of this rule.
func (r *BaseRule) newFinding(m *project.Module, message string) *finding.Finding {
	return &finding.Finding{
		Module:  m.Path,
		RuleID:  r.RuleID,
		Kind:    r.RuleKind,
		Message: message,
	}
}

// locate sets the finding position to the statement declaring dep, if any.
func locate(f *finding.Finding, parsed *descriptor.Parsed, dep project.Dependency) {
	for _, stmt := range parsed.Statements() {
		if dep.Matches(stmt) {
			f.Row, f.Column = stmt.Row, stmt.Column
			return
		}
	}
}

// judged reports whether the usage of dep can be decided from source references:
// project or external dependencies in a known compile configuration.
func judged(dep project.Dependency) bool {
	if !dep.Configuration.IsKnown() || dep.Configuration.IsCodeGen() {
		return false
	}
	return dep.Configuration.Base() != project.RuntimeOnly
}

// usedByDependents reports whether any module depending on m uses target from a
// source set that sees m. Only exposed dependencies of m reach those modules.
// Only direct dependents count: modules further down an exposed chain are not consulted.
func (r *BaseRule) usedByDependents(ctx context.Context, m *project.Module, target *project.Module, fixtures bool) (bool, error) {
	for _, dependent := range r.workspace().Dependents(m.Path) {
		for _, ss := range consumingSourceSets(dependent, m.Path) {
			used, err := r.resolver.Uses(ctx, dependent, ss, target, fixtures)
			if err != nil {
				return false, err
			}
			if used {
				return true, nil
			}
		}
	}
	return false, nil
}

// consumingSourceSets returns the source sets of consumer that see the module at
// path: those declaring a dependency on it and everything downstream of them.
func consumingSourceSets(consumer *project.Module, path string) []project.SourceSetName {
	seen := make(map[project.SourceSetName]bool)
	var out []project.SourceSetName
	add := func(ss project.SourceSetName) {
		if !seen[ss] {
			seen[ss] = true
			out = append(out, ss)
		}
	}
	for _, d := range consumer.Dependencies.Projects() {
		if d.Path != path {
			continue
		}
		ss := d.Configuration.SourceSet()
		add(ss)
		for _, down := range consumer.Downstream(ss) {
			add(down)
		}
	}
	return out
}

// visibleIn reports whether a dependency declared for source set declared is on the
// compile classpath of ss.
func visibleIn(m *project.Module, declared, ss project.SourceSetName) bool {
	if declared == ss {
		return true
	}
	for _, up := range m.Upstream(ss) {
		if up == declared {
			return true
		}
	}
	return false
}

// exposedEdges returns the dependencies target passes on to its consumers: the
// exposed project edges of main, plus those of testFixtures for fixture consumers.
func exposedEdges(target *project.Module, fixtures bool) []project.Dependency {
	return target.Dependencies.Filter(func(d project.Dependency) bool {
		if !d.IsProject() || !target.IsExposed(d.Configuration) {
			return false
		}
		ss := d.Configuration.SourceSet()
		return ss == project.Main || (fixtures && ss == project.TestFixtures)
	})
}

// inheritedEdge is a dependency reachable through an exposed chain starting at Source.
type inheritedEdge struct {
	Dependency project.Dependency
	Source     project.Dependency
}

// exposedClosure walks the exposed chains starting at the direct edge source and
// returns every edge reached, nearest first. Each target module appears once.
func (r *BaseRule) exposedClosure(source project.Dependency) []inheritedEdge {
	var out []inheritedEdge
	seen := map[string]bool{source.Path: true}
	type item struct {
		path     string
		fixtures bool
	}
	queue := []item{{path: source.Path, fixtures: source.TestFixture}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		target, ok := r.workspace().Module(cur.path)
		if !ok {
			continue
		}
		for _, d := range exposedEdges(target, cur.fixtures) {
			if seen[d.Path] {
				continue
			}
			seen[d.Path] = true
			out = append(out, inheritedEdge{Dependency: d, Source: source})
			queue = append(queue, item{path: d.Path, fixtures: d.TestFixture})
		}
	}
	return out
}

// declaresIn reports whether m already declares a project dependency on path
// visible from ss.
func declaresIn(m *project.Module, ss project.SourceSetName, path string, fixtures bool) bool {
	for _, d := range m.Dependencies.Projects() {
		if d.Path == path && d.TestFixture == fixtures && judged(d) && visibleIn(m, d.Configuration.SourceSet(), ss) {
			return true
		}
	}
	return false
}

// analyzedSourceSets returns m's source sets that contain at least one file.
func analyzedSourceSets(ctx context.Context, m *project.Module) ([]project.SourceSetName, error) {
	var out []project.SourceSetName
	for _, ss := range m.SourceSetNames() {
		a, err := m.Analysis(ctx, ss)
		if err != nil {
			return nil, err
		}
		if a.Files > 0 {
			out = append(out, ss)
		}
	}
	return out, nil
}
