package finding

import (
	"sort"

	"github.com/platinummonkey/modcheck/pkg/project"
)

// Arbitrate turns the findings of one run into an ordered, duplicate-free list.
//
// Suppressed findings are dropped first. The rest are stably sorted adds before
// modifies before removes (an add may anchor on an edge a later remove deletes),
// then by rule id, dependency identifier and module. Finally, a finding that adds
// an edge already scheduled for addition, or removes one already scheduled for
// removal, in the same module is dropped. A modify registers both of its edges.
func Arbitrate(findings []*Finding, suppressions map[string]Suppressions) []*Finding {
	kept := make([]*Finding, 0, len(findings))
	for _, f := range findings {
		if s, ok := suppressions[f.Module]; ok && s.Suppresses(f) {
			continue
		}
		kept = append(kept, f)
	}

	sort.SliceStable(kept, func(i, j int) bool { return Less(kept[i], kept[j]) })

	added := make(map[string]bool)
	removed := make(map[string]bool)
	out := kept[:0]
	for _, f := range kept {
		if conflicts(f.Module, f.Adds, added) || conflicts(f.Module, f.Removes, removed) {
			continue
		}
		register(f.Module, f.Adds, added)
		register(f.Module, f.Removes, removed)
		out = append(out, f)
	}
	return out
}

// Less orders findings by category, rule id, identifier and module.
func Less(a, b *Finding) bool {
	if ca, cb := a.Category(), b.Category(); ca != cb {
		return ca < cb
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	if ia, ib := a.Identifier(), b.Identifier(); ia != ib {
		return ia < ib
	}
	if a.Configuration() != b.Configuration() {
		return a.Configuration() < b.Configuration()
	}
	return a.Module < b.Module
}

func conflicts(module string, deps []project.Dependency, seen map[string]bool) bool {
	for _, d := range deps {
		if seen[module+"|"+d.Key()] {
			return true
		}
	}
	return false
}

func register(module string, deps []project.Dependency, seen map[string]bool) {
	for _, d := range deps {
		seen[module+"|"+d.Key()] = true
	}
}
