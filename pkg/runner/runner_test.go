package runner

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/async"
	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/fix"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/project/projecttest"
)

type runRecorder struct {
	mu       sync.Mutex
	outcomes []*finding.Outcome
}

func (r *runRecorder) RunFinished(_ context.Context, o *finding.Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

type moduleRecorder struct {
	mu       sync.Mutex
	finished []string
}

func (m *moduleRecorder) ModuleStarted(string) {}

func (m *moduleRecorder) ModuleFinished(path string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, path)
}

func (m *moduleRecorder) CacheEvicted(string) {}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

// :a depends on :b and :c through api, :b exposes :c, so :a -> :c is redundant.
func redundantWorkspace(t *testing.T) *project.Workspace {
	b := projecttest.New(t)
	b.Module(":c").Declares(project.Main, "com.c.C")
	b.Module(":b").Api(":c").Declares(project.Main, "com.b.B").References(project.Main, "com.c.C")
	b.Module(":a").Api(":b").Api(":c").References(project.Main, "com.b.B", "com.c.C")
	return b.Build()
}

func TestRunner_Run_AutoCorrect(t *testing.T) {
	ws := redundantWorkspace(t)
	rec := &runRecorder{}
	mods := &moduleRecorder{}

	outcome := New(ws,
		WithLogger(quietLogger()),
		WithRunObserver(rec),
		WithQueueObserver(mods),
	).Run(context.Background())

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Results, 1)
	res := outcome.Results[0]
	assert.Equal(t, ":a", res.Module)
	assert.Equal(t, linter.RuleRedundantDependency, res.RuleID)
	assert.Equal(t, ":c", res.Dependency)
	assert.True(t, res.Fixed)
	assert.Contains(t, res.File, "build.gradle.kts")

	assert.False(t, outcome.Failed())
	assert.Equal(t, 1, outcome.Fixed())
	_, err := uuid.Parse(outcome.RunID)
	assert.NoError(t, err)

	text := projecttest.ReadDescriptor(t, ws, ":a")
	assert.Contains(t, text, `// api(project(":c"))`+descriptor.FixLabel(linter.RuleRedundantDependency))
	assert.Contains(t, text, `api(project(":b"))`)

	a, _ := ws.Module(":a")
	assert.False(t, a.Dependencies.Contains(project.ProjectDependency(project.API, ":c", false)))

	require.Len(t, rec.outcomes, 1)
	assert.Same(t, outcome, rec.outcomes[0])
	assert.ElementsMatch(t, []string{":a", ":b", ":c"}, mods.finished)
}

func TestRunner_Run_ReportOnly(t *testing.T) {
	ws := redundantWorkspace(t)
	before := projecttest.ReadDescriptor(t, ws, ":a")

	outcome := New(ws, WithLogger(quietLogger()), WithAutoCorrect(false)).Run(context.Background())

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Results, 1)
	assert.False(t, outcome.Results[0].Fixed)
	assert.Equal(t, 1, outcome.Unfixed)
	assert.True(t, outcome.Failed())
	assert.Equal(t, before, projecttest.ReadDescriptor(t, ws, ":a"))
}

func TestRunner_Run_DeleteStrategy(t *testing.T) {
	ws := redundantWorkspace(t)

	outcome := New(ws, WithLogger(quietLogger()), WithStrategy(fix.Delete)).Run(context.Background())

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.Results, 1)
	assert.True(t, outcome.Results[0].Fixed)
	text := projecttest.ReadDescriptor(t, ws, ":a")
	assert.NotContains(t, text, `":c"`)
	assert.NotContains(t, text, descriptor.FixLabelPrefix)
}

func TestRunner_Run_SecondRunIsClean(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":b").Declares(project.Main, "com.b.B")
	b.Module(":a").Implementation(":b").References(project.Main, "java.util.List")
	ws := b.Build()

	first := New(ws, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, first.Err)
	require.Len(t, first.Results, 1)
	assert.True(t, first.Results[0].Fixed)
	fixed := projecttest.ReadDescriptor(t, ws, ":a")

	second := New(ws, WithLogger(quietLogger())).Run(context.Background())
	require.NoError(t, second.Err)
	assert.Empty(t, second.Results)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, fixed, projecttest.ReadDescriptor(t, ws, ":a"))
}

func TestRunner_Run_Cycle(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":a").Api(":b")
	b.Module(":b").Api(":a")
	ws := b.Build()
	rec := &runRecorder{}

	outcome := New(ws, WithLogger(quietLogger()), WithRunObserver(rec)).Run(context.Background())

	assert.ErrorIs(t, outcome.Err, dependencies.ErrCycle)
	assert.True(t, outcome.Failed())
	assert.Empty(t, outcome.Results)
	require.Len(t, rec.outcomes, 1)
}

func TestRunner_Run_ModuleError(t *testing.T) {
	b := projecttest.New(t)
	b.Module(":b").Declares(project.Main, "com.b.B")
	b.Module(":a").Implementation(":b").References(project.Main, "java.util.List")
	b.Module(":broken").Implementation(":b").References(project.Main, "com.b.B")
	ws := b.Build()

	broken, _ := ws.Module(":broken")
	require.NoError(t, os.Remove(broken.Descriptor.Path()))

	outcome := New(ws, WithLogger(quietLogger())).Run(context.Background())

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.ModuleErrors, 1)
	assert.Equal(t, ":broken", outcome.ModuleErrors[0].Module)
	assert.True(t, outcome.Failed())

	// the other modules are still evaluated and fixed
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, ":a", outcome.Results[0].Module)
	assert.True(t, outcome.Results[0].Fixed)
}

func TestRunner_Run_Cancelled(t *testing.T) {
	ws := redundantWorkspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := New(ws, WithLogger(quietLogger())).Run(ctx)

	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Empty(t, outcome.Results)
	for _, m := range ws.Modules() {
		assert.Zero(t, m.CachedSourceSets(), m.Path)
	}
}

func TestRunner_Run_DoNotCheck(t *testing.T) {
	ws := redundantWorkspace(t)
	settings, err := linter.NewSettings(linter.WithDoNotCheck(":a"))
	require.NoError(t, err)

	outcome := New(ws, WithLogger(quietLogger()), WithSettings(settings)).Run(context.Background())

	require.NoError(t, outcome.Err)
	assert.Empty(t, outcome.Results)
}

type panickingRule struct{ module string }

func (r panickingRule) ID() string { return "panicking-rule" }
func (r panickingRule) Kind() finding.Kind { return finding.ReportOnly }
func (r panickingRule) Description() string { return "panics on one module" }

func (r panickingRule) Check(_ context.Context, m *project.Module) ([]*finding.Finding, error) {
	if m.Path == r.module {
		var seen map[string]bool
		seen[m.Path] = true
	}
	return nil, nil
}

func TestRunner_Run_RulePanic(t *testing.T) {
	ws := redundantWorkspace(t)

	outcome := New(ws,
		WithLogger(quietLogger()),
		WithRules(panickingRule{module: ":b"}),
	).Run(context.Background())

	require.NoError(t, outcome.Err)
	require.Len(t, outcome.ModuleErrors, 1)
	assert.Equal(t, ":b", outcome.ModuleErrors[0].Module)
	var pe *async.PanicError
	assert.True(t, errors.As(outcome.ModuleErrors[0].Err, &pe))
	assert.True(t, outcome.Failed())

	// :a is still evaluated and fixed
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, ":a", outcome.Results[0].Module)
	assert.True(t, outcome.Results[0].Fixed)
}
