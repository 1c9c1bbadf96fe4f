package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/history"
	"github.com/platinummonkey/modcheck/pkg/observability"
)

func newStore(t *testing.T) *history.SQLStore {
	t.Helper()
	store, err := history.Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(t *testing.T, store history.Store, id string, at time.Time) {
	t.Helper()
	o := finding.NewOutcome(id, []finding.Result{{
		Module: ":app", RuleID: "unused-dependency", Kind: "fixable", Action: "remove",
		Dependency: ":core", Configuration: "implementation", Message: "unused",
	}}, nil, nil)
	require.NoError(t, store.Record(context.Background(), history.NewRun("/repo", o, at, time.Second)))
}

func graphSource(context.Context) (*dependencies.DependencyGraph, error) {
	g := dependencies.NewDependencyGraph()
	g.AddNode(":app", []dependencies.Dependency{{Module: ":core", Configuration: "implementation", Type: "direct"}})
	g.AddNode(":core", nil)
	return g, nil
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := NewServer()
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/nonexistent").Code)
}

func TestServer_Runs(t *testing.T) {
	store := newStore(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	record(t, store, "run-1", base)
	record(t, store, "run-2", base.Add(time.Hour))

	s := NewServer(WithHistory(store))

	rec := do(t, s, http.MethodGet, "/v1/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var list RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "run-2", list.Runs[0].ID)

	rec = do(t, s, http.MethodGet, "/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest history.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, "run-2", latest.ID)
	assert.Len(t, latest.Findings, 1)

	rec = do(t, s, http.MethodGet, "/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-1"`)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/runs/run-9").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?limit=x").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/runs?limit=0").Code)
}

func TestServer_RunsEmptyHistory(t *testing.T) {
	s := NewServer(WithHistory(newStore(t)))

	rec := do(t, s, http.MethodGet, "/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[],"count":0}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/runs/latest").Code)
}

func TestServer_NoHistory(t *testing.T) {
	s := NewServer()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/v1/runs").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/v1/runs/latest").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/v1/runs").Code)
}

func TestServer_StartRun(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	log, hook := test.NewNullLogger()
	s := NewServer(WithLogger(log), WithTrigger(func(ctx context.Context) *finding.Outcome {
		calls++
		<-release
		return finding.NewOutcome("run-x", nil, nil, errors.New("dependency cycle detected"))
	}))

	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/v1/runs").Code)
	assert.True(t, s.Running())
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/v1/runs").Code)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.False(t, s.Running())
	assert.Equal(t, 1, calls)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "triggered run failed", hook.LastEntry().Message)
}

func TestServer_RunTimeout(t *testing.T) {
	s := NewServer(WithRunTimeout(20*time.Millisecond), WithTrigger(func(ctx context.Context) *finding.Outcome {
		<-ctx.Done()
		return finding.NewOutcome("run-t", nil, nil, ctx.Err())
	}))

	require.True(t, s.TryRun())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.False(t, s.Running())
}

func TestServer_TriggerPanic(t *testing.T) {
	s := NewServer(WithTrigger(func(context.Context) *finding.Outcome { panic("boom") }))

	require.True(t, s.TryRun())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.False(t, s.Running())
	assert.True(t, s.TryRun())
	require.NoError(t, s.Wait(ctx))
}

func TestServer_GraphRoutes(t *testing.T) {
	s := NewServer(WithGraphSource(graphSource))

	rec := do(t, s, http.MethodGet, "/v1/modules")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = do(t, s, http.MethodGet, "/v1/modules/dependents?module=:core")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ":app")
}

func TestServer_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	s := NewServer(WithMetrics(metrics, registry))

	do(t, s, http.MethodGet, "/healthz")
	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `modcheck_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestServer_Handler(t *testing.T) {
	h := NewServer().Handler()
	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
