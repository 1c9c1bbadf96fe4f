// Package linter evaluates dependency hygiene rules against workspace modules.
//
// # Overview
//
// A Rule inspects one module and returns findings. Rules are tagged with a
// finding.Kind: fixable rules propose dependency edits, sort rules reorder a
// descriptor block, and report-only rules are informational. The Engine runs the
// enabled rules of a RuleRegistry concurrently for a module and collects the
// suppressions declared in its descriptor.
//
// # Settings
//
// Settings is built once per run and passed explicitly to the engine and to every
// rule constructor:
//
//	settings, err := linter.NewSettings(
//		linter.WithIgnoreUnused(":core:api"),
//		linter.WithHostToolVersion("8.1.0"),
//	)
//
//	registry := linter.NewRuleRegistry()
//	rules.RegisterDefaultRules(registry, usage.New(ws), settings)
//
//	engine := linter.NewEngine(settings, registry)
//	eval, err := engine.Evaluate(ctx, module)
//
// # Related Packages
//
//   - pkg/linter/rules: Built-in rules
//   - pkg/finding: Findings, suppressions and arbitration
//   - pkg/usage: Usage resolution shared by the rules
package linter
