package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/webhooks"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture is a workspace where :app declares :lib without using it.
func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, root, "settings.gradle.kts", `include(":app", ":lib")`)
	write(t, root, "app/build.gradle.kts", "dependencies {\n  implementation(project(\":lib\"))\n}\n")
	write(t, root, "app/src/main/kotlin/App.kt", "package com.example.app\n\nclass App\n")
	write(t, root, "lib/build.gradle.kts", "dependencies {\n}\n")
	write(t, root, "lib/src/main/kotlin/Lib.kt", "package com.example.lib\n\nclass Lib\n")
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewRootCommandWithOutput(&out).Execute(context.Background(), args)
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "modcheck", root.Name)
	assert.NotNil(t, root.Flags)
	for _, name := range []string{"check", "rules", "graph", "history", "watch", "version"} {
		assert.Contains(t, root.Subcommands, name)
	}
	assert.Len(t, root.Subcommands, 6)
}

func TestCommandUsage(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: modcheck <command> [args]")
	assert.Contains(t, out, "check")
	assert.Contains(t, out, "Find and fix dependency issues")
	assert.Less(t, strings.Index(out, "check"), strings.Index(out, "watch"))

	_, err = execute(t, "frobnicate")
	assert.EqualError(t, err, "unknown command: frobnicate")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "modcheck dev\n", out)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "help", err: flag.ErrHelp, want: 0},
		{name: "findings", err: fmt.Errorf("%w: 1 unfixed, 0 module errors", ErrCheckFailed), want: 1},
		{name: "fatal", err: dependencies.ErrCycle, want: 2},
		{name: "usage", err: errors.New("unknown command: x"), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCheck_ReportOnly(t *testing.T) {
	root := fixture(t)

	out, err := execute(t, "check", "--dir", root, "--no-fix", "--log-level", "error")
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out, ":app:")
	assert.Contains(t, out, "[unused-dependency]")
	assert.Contains(t, out, "(not fixed)")

	data, err := os.ReadFile(filepath.Join(root, "app/build.gradle.kts"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "modcheck finding")
}

func TestCheck_Fixes(t *testing.T) {
	root := fixture(t)
	report := filepath.Join(t.TempDir(), "report.json")

	out, err := execute(t, "check", "--dir", root, "--output", report, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "(fixed)")
	assert.Contains(t, out, "No unfixed dependency issues")

	data, err := os.ReadFile(filepath.Join(root, "app/build.gradle.kts"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "// modcheck finding [unused-dependency]")

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	var doc struct {
		RunID   string `json:"runId"`
		Summary struct {
			Fixed int `json:"fixed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, 1, doc.Summary.Fixed)

	// the second run finds nothing left to fix
	out, err = execute(t, "check", "--dir", root, "--log-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, out, "[unused-dependency]")
}

func TestCheck_GitHubFormat(t *testing.T) {
	root := fixture(t)

	out, err := execute(t, "check", "--dir", root, "--no-fix", "--format", "github", "--log-level", "error")
	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, out, "::error file=app/build.gradle.kts")
	assert.Contains(t, out, "title=unused-dependency")
}

func TestCheck_InvalidFormat(t *testing.T) {
	_, err := execute(t, "check", "--dir", fixture(t), "--format", "sarif")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestCheck_NoModules(t *testing.T) {
	_, err := execute(t, "check", "--dir", t.TempDir(), "--log-level", "error")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCheckFailed)
}

func TestCheck_RecordsHistory(t *testing.T) {
	root := fixture(t)
	dsn := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("MODCHECK_HISTORY_DSN", dsn)

	_, err := execute(t, "check", "--dir", root, "--no-fix", "--log-level", "error")
	require.ErrorIs(t, err, ErrCheckFailed)

	out, err := execute(t, "history", "--dir", root, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "failed")

	out, err = execute(t, "history", "--dir", root, "--format", "json", "--log-level", "error")
	require.NoError(t, err)
	var runs []struct {
		ID      string `json:"id"`
		Unfixed int    `json:"unfixed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Unfixed)

	out, err = execute(t, "history", "--dir", root, "--id", runs[0].ID, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+runs[0].ID)
	assert.Contains(t, out, "[unused-dependency]")
}

func TestCheck_NotifiesWebhook(t *testing.T) {
	events := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events <- r.Header.Get(webhooks.HeaderEvent)
	}))
	defer srv.Close()
	t.Setenv("MODCHECK_WEBHOOK_URL", srv.URL)

	_, err := execute(t, "check", "--dir", fixture(t), "--no-fix", "--log-level", "error")
	require.ErrorIs(t, err, ErrCheckFailed)
	select {
	case ev := <-events:
		assert.Equal(t, string(webhooks.EventRunFailed), ev)
	default:
		t.Fatal("webhook was not called")
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	_, err := execute(t, "history", "--dir", fixture(t), "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history database configured")
}

func TestRules(t *testing.T) {
	out, err := execute(t, "rules", "--dir", fixture(t), "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "DESCRIPTION")
	assert.Contains(t, out, linter.RuleUnusedDependency)
	assert.Contains(t, out, linter.RuleProjectDepth)

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, linter.RuleProjectDepth) {
			assert.Contains(t, line, "false")
		}
		if strings.HasPrefix(line, linter.RuleUnusedDependency) {
			assert.Contains(t, line, "true")
		}
	}
}

func TestGraph(t *testing.T) {
	root := fixture(t)

	out, err := execute(t, "graph", "--dir", root, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, ":app (depth 1)\n  -> :lib [implementation]\n")
	assert.Contains(t, out, ":lib (depth 0)\n")

	out, err = execute(t, "graph", "--dir", root, "--module", ":lib", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "  <- :app\n")

	out, err = execute(t, "graph", "--dir", root, "--format", "json", "--log-level", "error")
	require.NoError(t, err)
	var cyto dependencies.CytoscapeGraph
	require.NoError(t, json.Unmarshal([]byte(out), &cyto))
	assert.Len(t, cyto.Nodes, 2)
	assert.Len(t, cyto.Edges, 1)

	_, err = execute(t, "graph", "--dir", root, "--module", ":nope", "--log-level", "error")
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{name: "kotlin descriptor", ev: fsnotify.Event{Name: "app/build.gradle.kts", Op: fsnotify.Write}, want: true},
		{name: "groovy descriptor", ev: fsnotify.Event{Name: "lib/build.gradle", Op: fsnotify.Write}, want: true},
		{name: "kotlin source", ev: fsnotify.Event{Name: "App.kt", Op: fsnotify.Create}, want: true},
		{name: "layout", ev: fsnotify.Event{Name: "res/layout/main.xml", Op: fsnotify.Remove}, want: true},
		{name: "settings", ev: fsnotify.Event{Name: ".modcheck.yml", Op: fsnotify.Write}, want: true},
		{name: "chmod", ev: fsnotify.Event{Name: "App.kt", Op: fsnotify.Chmod}, want: false},
		{name: "editor swap", ev: fsnotify.Event{Name: "App.kt.swp", Op: fsnotify.Write}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestWatchDirs(t *testing.T) {
	root := fixture(t)
	write(t, root, "app/src/main/kotlin/build/Gen.kt", "")

	dirs, err := watchDirs(root)
	require.NoError(t, err)
	assert.Contains(t, dirs, root)
	assert.Contains(t, dirs, filepath.Join(root, "app"))
	assert.Contains(t, dirs, filepath.Join(root, "app/src/main/kotlin"))
	assert.Contains(t, dirs, filepath.Join(root, "lib/src/main/kotlin"))
	assert.NotContains(t, dirs, filepath.Join(root, "app/src/main/kotlin/build"))
}

func TestWatcher_Debounces(t *testing.T) {
	root := fixture(t)
	log, _ := test.NewNullLogger()

	var changes atomic.Int32
	w, err := newWatcher(root, 50*time.Millisecond, log, func() { changes.Add(1) })
	require.NoError(t, err)
	defer w.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	for i := 0; i < 3; i++ {
		write(t, root, "app/src/main/kotlin/App.kt", "package com.example.app\n\nclass App\n// edit\n")
	}
	assert.Eventually(t, func() bool { return changes.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	write(t, root, "app/notes.txt", "ignored")
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), changes.Load())
}
