package rules

import (
	"context"
	"strings"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// Block names reordered by the sort rules.
const (
	BlockDependencies = "dependencies"
	BlockPlugins      = "plugins"
)

// SortDependenciesRule finds dependencies blocks not ordered by the comparators.
type SortDependenciesRule struct {
	BaseRule
}

// NewSortDependenciesRule creates the dependency sort rule
func NewSortDependenciesRule(resolver *usage.Resolver, settings *linter.Settings) *SortDependenciesRule {
	return &SortDependenciesRule{
		BaseRule: newBaseRule(linter.RuleSortDependencies, finding.Sort,
			"Sorts dependency declarations by configuration and path", resolver, settings),
	}
}

// Check reports the first unsorted dependencies block.
func (r *SortDependenciesRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}
	for _, block := range parsed.Dependencies {
		if !descriptor.IsSorted(parsed.Text, block, r.settings.DependencyComparators, true) {
			return []*finding.Finding{r.sortFinding(m, parsed, block, BlockDependencies)}, nil
		}
	}
	return nil, nil
}

// SortPluginsRule finds a plugins block not ordered by the comparators.
type SortPluginsRule struct {
	BaseRule
}

// NewSortPluginsRule creates the plugin sort rule
func NewSortPluginsRule(resolver *usage.Resolver, settings *linter.Settings) *SortPluginsRule {
	return &SortPluginsRule{
		BaseRule: newBaseRule(linter.RuleSortPlugins, finding.Sort,
			"Sorts plugin declarations", resolver, settings),
	}
}

// Check reports an unsorted plugins block.
func (r *SortPluginsRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}
	if parsed.Plugins == nil || descriptor.IsSorted(parsed.Text, parsed.Plugins, r.settings.PluginComparators, false) {
		return nil, nil
	}
	return []*finding.Finding{r.sortFinding(m, parsed, parsed.Plugins, BlockPlugins)}, nil
}

func (r *BaseRule) sortFinding(m *project.Module, parsed *descriptor.Parsed, block *descriptor.Block, name string) *finding.Finding {
	f := r.newFinding(m, "The "+name+" block is not sorted.")
	f.Block = name
	f.Row, f.Column = rowOf(parsed.Text, block.Start), 1
	return f
}

func rowOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}
