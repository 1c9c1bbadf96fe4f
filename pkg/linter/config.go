package linter

import (
	"fmt"
	"regexp"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
)

// Checks toggles individual rules. Field names follow the settings file keys.
type Checks struct {
	UnusedDependency        bool `yaml:"unusedDependency" json:"unusedDependency"`
	InheritedDependency     bool `yaml:"inheritedDependency" json:"inheritedDependency"`
	OvershotDependency      bool `yaml:"overshotDependency" json:"overshotDependency"`
	RedundantDependency     bool `yaml:"redundantDependency" json:"redundantDependency"`
	TestOnlyDependency      bool `yaml:"testOnlyDependency" json:"testOnlyDependency"`
	UnusedKapt              bool `yaml:"unusedKapt" json:"unusedKapt"`
	UnusedKaptPlugin        bool `yaml:"unusedKaptPlugin" json:"unusedKaptPlugin"`
	DisableAndroidResources bool `yaml:"disableAndroidResources" json:"disableAndroidResources"`
	DisableViewBinding      bool `yaml:"disableViewBinding" json:"disableViewBinding"`
	SortDependencies        bool `yaml:"sortDependencies" json:"sortDependencies"`
	SortPlugins             bool `yaml:"sortPlugins" json:"sortPlugins"`
	Depths                  bool `yaml:"depths" json:"depths"`
}

// DefaultChecks enables everything except the sort rules and depth reporting.
func DefaultChecks() Checks {
	return Checks{
		UnusedDependency:        true,
		InheritedDependency:     true,
		OvershotDependency:      true,
		RedundantDependency:     true,
		TestOnlyDependency:      true,
		UnusedKapt:              true,
		UnusedKaptPlugin:        true,
		DisableAndroidResources: true,
		DisableViewBinding:      true,
	}
}

// Enabled reports whether the rule with the given id is switched on.
// Unknown ids are enabled so that custom rules run unless filtered elsewhere.
func (c Checks) Enabled(ruleID string) bool {
	switch ruleID {
	case RuleUnusedDependency:
		return c.UnusedDependency
	case RuleInheritedDependency:
		return c.InheritedDependency
	case RuleOvershotDependency:
		return c.OvershotDependency
	case RuleRedundantDependency:
		return c.RedundantDependency
	case RuleTestOnlyDependency:
		return c.TestOnlyDependency
	case RuleUnusedKaptProcessor:
		return c.UnusedKapt
	case RuleUnusedKaptPlugin:
		return c.UnusedKaptPlugin
	case RuleDisableAndroidResources:
		return c.DisableAndroidResources
	case RuleDisableViewBinding:
		return c.DisableViewBinding
	case RuleSortDependencies:
		return c.SortDependencies
	case RuleSortPlugins:
		return c.SortPlugins
	case RuleProjectDepth:
		return c.Depths
	}
	return true
}

// Built-in rule ids.
const (
	RuleUnusedDependency        = "unused-dependency"
	RuleInheritedDependency     = "inherited-dependency"
	RuleOvershotDependency      = "overshot-dependency"
	RuleRedundantDependency     = "redundant-dependency"
	RuleTestOnlyDependency      = "test-only-dependency"
	RuleUnusedKaptProcessor     = "unused-kapt-processor"
	RuleUnusedKaptPlugin        = "unused-kapt-plugin"
	RuleDisableAndroidResources = "disable-android-resources"
	RuleDisableViewBinding      = "disable-view-binding"
	RuleSortDependencies        = "sort-dependencies"
	RuleSortPlugins             = "sort-plugins"
	RuleProjectDepth            = "project-depth"
)

// Settings is the immutable rule configuration of one run.
type Settings struct {
	Checks Checks
	// IgnoreUnusedFinding lists module paths never reported as unused dependencies.
	IgnoreUnusedFinding []string
	// DoNotCheck lists module paths excluded from evaluation.
	DoNotCheck []string
	// HostToolVersion gates generated-feature rules when a descriptor declares no version.
	HostToolVersion string

	DependencyComparators []*regexp.Regexp
	PluginComparators     []*regexp.Regexp

	dependencyPatterns []string
	pluginPatterns     []string
	ignoreUnused       map[string]bool
	doNotCheck         map[string]bool
}

// SettingsOption configures Settings.
type SettingsOption func(*Settings)

// WithChecks replaces the rule toggles.
func WithChecks(c Checks) SettingsOption {
	return func(s *Settings) { s.Checks = c }
}

// WithIgnoreUnused never reports the given module paths as unused dependencies.
func WithIgnoreUnused(paths ...string) SettingsOption {
	return func(s *Settings) { s.IgnoreUnusedFinding = append(s.IgnoreUnusedFinding, paths...) }
}

// WithDoNotCheck excludes the given modules from evaluation.
func WithDoNotCheck(paths ...string) SettingsOption {
	return func(s *Settings) { s.DoNotCheck = append(s.DoNotCheck, paths...) }
}

// WithHostToolVersion sets the fallback Android Gradle Plugin version.
func WithHostToolVersion(version string) SettingsOption {
	return func(s *Settings) { s.HostToolVersion = version }
}

// WithComparators replaces the sort comparators. Empty slices keep the defaults.
func WithComparators(dependencies, plugins []string) SettingsOption {
	return func(s *Settings) {
		if len(dependencies) > 0 {
			s.dependencyPatterns = dependencies
		}
		if len(plugins) > 0 {
			s.pluginPatterns = plugins
		}
	}
}

// NewSettings builds settings from options, compiling the sort comparators.
func NewSettings(opts ...SettingsOption) (*Settings, error) {
	s := &Settings{
		Checks:             DefaultChecks(),
		dependencyPatterns: descriptor.DefaultDependencyComparators,
		pluginPatterns:     descriptor.DefaultPluginComparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.DependencyComparators, err = descriptor.CompileComparators(s.dependencyPatterns); err != nil {
		return nil, fmt.Errorf("invalid dependency comparator: %w", err)
	}
	if s.PluginComparators, err = descriptor.CompileComparators(s.pluginPatterns); err != nil {
		return nil, fmt.Errorf("invalid plugin comparator: %w", err)
	}

	s.ignoreUnused = toSet(s.IgnoreUnusedFinding)
	s.doNotCheck = toSet(s.DoNotCheck)
	return s, nil
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	s, err := NewSettings()
	if err != nil {
		panic(err)
	}
	return s
}

// IgnoresUnused reports whether path may never be reported as an unused dependency.
func (s *Settings) IgnoresUnused(path string) bool { return s.ignoreUnused[path] }

// Skips reports whether the module at path is excluded from evaluation.
func (s *Settings) Skips(path string) bool { return s.doNotCheck[path] }

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
