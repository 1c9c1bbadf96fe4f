package linter

import (
	"context"
	"sort"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/project"
)

// Rule interface that all rules must implement. A rule reads the model and returns
// findings; it never edits descriptors or the dependency set itself. A rule that
// cannot classify a module returns no findings. Errors are reserved for failures
// reading the module, such as an unreadable descriptor.
type Rule interface {
	ID() string
	Kind() finding.Kind
	Description() string
	Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error)
}

// RuleRegistry manages available rules
type RuleRegistry struct {
	rules map[string]Rule
}

// NewRuleRegistry creates an empty registry
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]Rule),
	}
}

// Register adds a rule to the registry, replacing any rule with the same id
func (r *RuleRegistry) Register(rule Rule) {
	r.rules[rule.ID()] = rule
}

// GetRule retrieves a rule by id. The camelCase alias of the id is accepted.
func (r *RuleRegistry) GetRule(id string) (Rule, bool) {
	if rule, ok := r.rules[id]; ok {
		return rule, true
	}
	for _, rule := range r.rules {
		if finding.CamelCase(rule.ID()) == id {
			return rule, true
		}
	}
	return nil, false
}

// GetAllRules returns all registered rules ordered by id
func (r *RuleRegistry) GetAllRules() []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID() < rules[j].ID() })
	return rules
}

// GetEnabledRules returns the rules switched on by settings
func (r *RuleRegistry) GetEnabledRules(settings *Settings) []Rule {
	all := r.GetAllRules()
	if settings == nil {
		return all
	}
	rules := make([]Rule, 0, len(all))
	for _, rule := range all {
		if settings.Checks.Enabled(rule.ID()) {
			rules = append(rules, rule)
		}
	}
	return rules
}

// GetRulesByKind returns rules with the given kind
func (r *RuleRegistry) GetRulesByKind(kind finding.Kind) []Rule {
	rules := make([]Rule, 0)
	for _, rule := range r.GetAllRules() {
		if rule.Kind() == kind {
			rules = append(rules, rule)
		}
	}
	return rules
}
