package finding

import (
	"github.com/platinummonkey/modcheck/pkg/project"
)

// Kind tags how a rule's findings are handled.
type Kind int

const (
	// Fixable findings carry concrete edits.
	Fixable Kind = iota
	// Sort findings reorder declarations without changing the dependency set.
	Sort
	// ReportOnly findings are informational and never applied.
	ReportOnly
)

func (k Kind) String() string {
	switch k {
	case Sort:
		return "sort"
	case ReportOnly:
		return "report-only"
	default:
		return "fixable"
	}
}

// Category orders findings for fix application.
type Category int

const (
	CategoryAdd Category = iota
	CategoryModify
	CategoryRemove
	// CategoryEdit covers fixable findings that touch plugins or feature flags.
	CategoryEdit
	CategorySort
	CategoryReport
)

func (c Category) String() string {
	return [...]string{"add", "modify", "remove", "edit", "sort", "report"}[c]
}

// Finding is one reported defect. It is immutable once created.
type Finding struct {
	Module string
	RuleID string
	Kind   Kind

	// Dependency is the implicated edge; nil for plugin and feature findings.
	Dependency *project.Dependency
	// Source is the edge that makes Dependency inherited, redundant or overshot.
	Source *project.Dependency
	// Plugin is the implicated plugin id.
	Plugin string
	// Feature is the implicated build feature flag.
	Feature string
	// FeatureValue is the value the fix writes for Feature.
	FeatureValue bool
	// Block names the descriptor block a sort finding reorders.
	Block string

	Message string
	Row     int
	Column  int

	Adds    []project.Dependency
	Removes []project.Dependency
}

// Category derives the fix-application category from the kind and actions.
func (f *Finding) Category() Category {
	switch f.Kind {
	case Sort:
		return CategorySort
	case ReportOnly:
		return CategoryReport
	}
	switch {
	case len(f.Adds) > 0 && len(f.Removes) > 0:
		return CategoryModify
	case len(f.Adds) > 0:
		return CategoryAdd
	case len(f.Removes) > 0:
		return CategoryRemove
	}
	return CategoryEdit
}

// Identifier is the implicated target: dependency identifier, plugin id or feature name.
func (f *Finding) Identifier() string {
	switch {
	case f.Dependency != nil:
		return f.Dependency.Identifier()
	case f.Plugin != "":
		return f.Plugin
	case f.Block != "":
		return f.Block
	}
	return f.Feature
}

// Configuration returns the implicated dependency's configuration, if any.
func (f *Finding) Configuration() string {
	if f.Dependency == nil {
		return ""
	}
	return string(f.Dependency.Configuration)
}

// SuppressionKeys are the keys a suppression can be attached to for this finding.
func (f *Finding) SuppressionKeys() []string {
	var keys []string
	if f.Dependency != nil {
		keys = append(keys, DependencyKey(*f.Dependency))
	}
	if f.Source != nil {
		keys = append(keys, DependencyKey(*f.Source))
	}
	if f.Plugin != "" {
		keys = append(keys, PluginKey(f.Plugin))
	}
	if f.Feature != "" {
		keys = append(keys, FeatureKey(f.Feature))
	}
	if f.Block != "" {
		keys = append(keys, BlockKey(f.Block))
	}
	return keys
}
