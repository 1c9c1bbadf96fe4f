//go:build integration

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its connection string.
func setupPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("modcheck_test"),
		postgres.WithUsername("modcheck"),
		postgres.WithPassword("modcheck_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestSQLStore_Postgres(t *testing.T) {
	ctx := context.Background()
	dsn := setupPostgres(t)
	store, err := Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	defer store.Close()

	started := time.Now().Add(-time.Minute)
	require.NoError(t, store.Record(ctx, NewRun("/repo", sampleOutcome("7c0b8c1e-0000-4000-8000-000000000001"), started, time.Second)))
	require.NoError(t, store.Record(ctx, NewRun("/repo", sampleOutcome("7c0b8c1e-0000-4000-8000-000000000002"), time.Now(), time.Second)))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7c0b8c1e-0000-4000-8000-000000000002", latest.ID)
	assert.Len(t, latest.Findings, 2)

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// the schema is created idempotently
	again, err := Open(ctx, "postgres", dsn)
	require.NoError(t, err)
	again.Close()
}
