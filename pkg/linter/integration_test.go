package linter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/linter/rules"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/project/projecttest"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recorder) ObserveRule(ruleID string, _ time.Duration, findings int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[ruleID] += findings
}

func TestEngine_Evaluate(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":c").Declares(project.Main, "com.c.C")
	b.Module(":b").Api(":c").Declares(project.Main, "com.b.B")
	b.Module(":a").Api(":b").Api(":c").
		References(project.Main, "com.b.B", "com.c.C")
	b.Module(":unused").Implementation(":b").
		References(project.Main, "java.util.List")
	ws := b.Build()

	settings := linter.DefaultSettings()
	registry := linter.NewRuleRegistry()
	rules.RegisterDefaultRules(registry, usage.New(ws), settings)
	rec := &recorder{calls: make(map[string]int)}
	engine := linter.NewEngine(settings, registry, linter.WithRuleObserver(rec))

	a, _ := ws.Module(":a")
	eval, err := engine.Evaluate(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, eval.Findings, 1)
	assert.Equal(t, linter.RuleRedundantDependency, eval.Findings[0].RuleID)
	assert.Equal(t, ":c", eval.Findings[0].Identifier())

	unused, _ := ws.Module(":unused")
	eval, err = engine.Evaluate(context.Background(), unused)
	require.NoError(t, err)
	require.Len(t, eval.Findings, 1)
	assert.Equal(t, linter.RuleUnusedDependency, eval.Findings[0].RuleID)

	assert.Equal(t, 1, rec.calls[linter.RuleRedundantDependency])
	assert.Equal(t, 1, rec.calls[linter.RuleUnusedDependency])
}

func TestEngine_Suppressions(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":b").Declares(project.Main, "com.b.B")
	b.Module(":a").Api(":b").
		References(project.Main, "java.util.List").
		Text(`plugins {
  ` + "`java-library`" + `
}

dependencies {
  @Suppress("unusedDependency")
  api(project(":b"))
}
`)
	ws := b.Build()

	settings := linter.DefaultSettings()
	registry := linter.NewRuleRegistry()
	rules.RegisterDefaultRules(registry, usage.New(ws), settings)
	engine := linter.NewEngine(settings, registry)

	a, _ := ws.Module(":a")
	eval, err := engine.Evaluate(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, eval.Findings, 1)

	kept := finding.Arbitrate(eval.Findings, map[string]finding.Suppressions{":a": eval.Suppressions})
	assert.Empty(t, kept)
}

func TestEngine_DoNotCheck(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":b")
	b.Module(":a").Api(":b").References(project.Main, "java.util.List")
	ws := b.Build()

	settings, err := linter.NewSettings(linter.WithDoNotCheck(":a"))
	require.NoError(t, err)
	registry := linter.NewRuleRegistry()
	rules.RegisterDefaultRules(registry, usage.New(ws), settings)

	a, _ := ws.Module(":a")
	eval, err := linter.NewEngine(settings, registry).Evaluate(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, eval.Findings)
}

type failingRule struct{}

func (failingRule) ID() string          { return "failing" }
func (failingRule) Kind() finding.Kind  { return finding.Fixable }
func (failingRule) Description() string { return "always fails" }
func (failingRule) Check(context.Context, *project.Module) ([]*finding.Finding, error) {
	return nil, errors.New("descriptor unreadable")
}

func TestEngine_RuleError(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":a")
	ws := b.Build()

	registry := linter.NewRuleRegistry()
	registry.Register(failingRule{})

	a, _ := ws.Module(":a")
	_, err := linter.NewEngine(nil, registry).Evaluate(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule failing on :a")
}
