package rules

import (
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// Registry interface for registering rules
type Registry interface {
	Register(rule linter.Rule)
}

// DefaultRules returns a fresh instance of every built-in rule.
func DefaultRules(resolver *usage.Resolver, settings *linter.Settings) []linter.Rule {
	return []linter.Rule{
		// dependency edges
		NewUnusedDependencyRule(resolver, settings),
		NewInheritedDependencyRule(resolver, settings),
		NewOvershotDependencyRule(resolver, settings),
		NewRedundantDependencyRule(resolver, settings),
		NewTestOnlyDependencyRule(resolver, settings),

		// code generation
		NewUnusedKaptProcessorRule(resolver, settings),
		NewUnusedKaptPluginRule(resolver, settings),
		NewDisableAndroidResourcesRule(resolver, settings),
		NewDisableViewBindingRule(resolver, settings),

		// formatting
		NewSortDependenciesRule(resolver, settings),
		NewSortPluginsRule(resolver, settings),

		NewProjectDepthRule(resolver, settings),
	}
}

// RegisterDefaultRules registers all built-in rules
func RegisterDefaultRules(registry Registry, resolver *usage.Resolver, settings *linter.Settings) {
	for _, rule := range DefaultRules(resolver, settings) {
		registry.Register(rule)
	}
}
