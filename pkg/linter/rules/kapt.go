package rules

import (
	"context"
	"fmt"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// UnusedKaptProcessorRule finds code generators whose trigger annotations are never used.
type UnusedKaptProcessorRule struct {
	BaseRule
}

// NewUnusedKaptProcessorRule creates the unused processor rule
func NewUnusedKaptProcessorRule(resolver *usage.Resolver, settings *linter.Settings) *UnusedKaptProcessorRule {
	return &UnusedKaptProcessorRule{
		BaseRule: newBaseRule(linter.RuleUnusedKaptProcessor, finding.Fixable,
			"Finds annotation processors whose annotations are not used", resolver, settings),
	}
}

// Check flags kapt, ksp and annotationProcessor dependencies of known generators
// none of whose annotations are referenced in the source set or downstream of it.
func (r *UnusedKaptProcessorRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var out []*finding.Finding
	for _, dep := range m.Dependencies.Filter(func(d project.Dependency) bool { return d.Configuration.IsCodeGen() }) {
		used, err := processorUsed(ctx, r.resolver, m, dep)
		if err != nil {
			return nil, err
		}
		if used {
			continue
		}
		d := dep
		gen, _ := r.resolver.CodeGenerators().Lookup(d.Coordinates)
		f := r.newFinding(m, fmt.Sprintf("The %s processor %s is declared but none of its annotations are used.", gen.Name, d))
		f.Dependency = &d
		f.Removes = []project.Dependency{d}
		locate(f, parsed, d)
		out = append(out, f)
	}
	return out, nil
}

func processorUsed(ctx context.Context, resolver *usage.Resolver, m *project.Module, dep project.Dependency) (bool, error) {
	ss := dep.Configuration.SourceSet()
	for _, name := range append([]project.SourceSetName{ss}, m.Downstream(ss)...) {
		used, err := resolver.IsUsed(ctx, m, name, dep)
		if err != nil || used {
			return used, err
		}
	}
	return false, nil
}

// UnusedKaptPluginRule finds the kapt plugin applied without any used processor.
type UnusedKaptPluginRule struct {
	BaseRule
}

// NewUnusedKaptPluginRule creates the unused kapt plugin rule
func NewUnusedKaptPluginRule(resolver *usage.Resolver, settings *linter.Settings) *UnusedKaptPluginRule {
	return &UnusedKaptPluginRule{
		BaseRule: newBaseRule(linter.RuleUnusedKaptPlugin, finding.Fixable,
			"Finds modules applying the kapt plugin without any used kapt processor", resolver, settings),
	}
}

// Check flags the kapt plugin when no kapt dependency is used.
func (r *UnusedKaptPluginRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}
	plugin := parsed.Plugin(project.KaptPluginIDs...)
	if plugin == nil {
		return nil, nil
	}

	for _, dep := range m.Dependencies.Filter(func(d project.Dependency) bool { return d.Configuration.Base() == project.Kapt }) {
		used, err := processorUsed(ctx, r.resolver, m, dep)
		if err != nil {
			return nil, err
		}
		if used {
			return nil, nil
		}
	}

	f := r.newFinding(m, "The kapt plugin is applied but no annotation processor is used.")
	f.Plugin = project.KaptPluginID
	f.Row, f.Column = plugin.Row, plugin.Column
	return []*finding.Finding{f}, nil
}
