package finding

import (
	"strings"
	"unicode"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/project"
)

// DependencyKey is the suppression key of a dependency statement.
func DependencyKey(d project.Dependency) string { return "dependency:" + d.Key() }

// PluginKey is the suppression key of a plugin statement.
func PluginKey(id string) string { return "plugin:" + id }

// FeatureKey is the suppression key of a feature flag.
func FeatureKey(name string) string { return "feature:" + name }

// BlockKey is the suppression key of a whole block such as dependencies.
func BlockKey(name string) string { return "block:" + name }

// Suppressions maps a suppression key to the rule ids silenced for it, for one module.
type Suppressions map[string]map[string]bool

// Add silences ids for key.
func (s Suppressions) Add(key string, ids ...string) {
	if len(ids) == 0 {
		return
	}
	set, ok := s[key]
	if !ok {
		set = make(map[string]bool)
		s[key] = set
	}
	for _, id := range ids {
		set[id] = true
	}
}

// IsSuppressed reports whether ruleID, or its camelCase alias, is silenced for key.
func (s Suppressions) IsSuppressed(key, ruleID string) bool {
	set, ok := s[key]
	if !ok {
		return false
	}
	return set[ruleID] || set[CamelCase(ruleID)]
}

// Suppresses reports whether f is silenced by any of its keys.
func (s Suppressions) Suppresses(f *Finding) bool {
	for _, key := range f.SuppressionKeys() {
		if s.IsSuppressed(key, f.RuleID) {
			return true
		}
	}
	return false
}

// SuppressionsFromDescriptor collects the suppression markers of a parsed descriptor.
func SuppressionsFromDescriptor(parsed *descriptor.Parsed) Suppressions {
	s := make(Suppressions)
	for _, block := range parsed.Dependencies {
		s.Add(BlockKey("dependencies"), block.Suppressed...)
		for _, stmt := range block.Statements {
			s.Add(DependencyKey(project.FromStatement(stmt)), stmt.Suppressed...)
		}
	}
	if parsed.Plugins != nil {
		s.Add(BlockKey("plugins"), parsed.Plugins.Suppressed...)
		for _, stmt := range parsed.Plugins.Statements {
			s.Add(PluginKey(stmt.PluginID), stmt.Suppressed...)
		}
	}
	for _, f := range parsed.Features {
		s.Add(FeatureKey(f.Name), f.Suppressed...)
	}
	return s
}

// CamelCase converts a kebab-case rule id to its camelCase alias.
func CamelCase(id string) string {
	parts := strings.Split(id, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		r := []rune(parts[i])
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, "")
}
