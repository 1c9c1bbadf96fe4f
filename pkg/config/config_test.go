package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/webhooks"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{name: "returns true for 'true'", defaultValue: false, envValue: "true", want: true},
		{name: "returns true for 'TRUE'", defaultValue: false, envValue: "TRUE", want: true},
		{name: "returns true for '1'", defaultValue: false, envValue: "1", want: true},
		{name: "returns false for 'false'", defaultValue: true, envValue: "false", want: false},
		{name: "returns false for anything else", defaultValue: true, envValue: "yes", want: false},
		{name: "returns default when not set", defaultValue: true, envValue: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue int
		envValue     string
		want         int
	}{
		{name: "parses valid integer", defaultValue: 0, envValue: "42", want: 42},
		{name: "parses negative integer", defaultValue: 0, envValue: "-3", want: -3},
		{name: "returns default on invalid integer", defaultValue: 7, envValue: "abc", want: 7},
		{name: "returns default when not set", defaultValue: 7, envValue: "", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_INT", tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvInt("TEST_INT", tt.defaultValue))
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{name: "parses seconds", defaultValue: 0, envValue: "30s", want: 30 * time.Second},
		{name: "parses compound", defaultValue: 0, envValue: "1h30m", want: 90 * time.Minute},
		{name: "returns default on invalid duration", defaultValue: time.Minute, envValue: "soon", want: time.Minute},
		{name: "returns default when not set", defaultValue: time.Minute, envValue: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_DURATION", tt.envValue)
			}
			assert.Equal(t, tt.want, getEnvDuration("TEST_DURATION", tt.defaultValue))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.AutoCorrect)
	assert.False(t, cfg.DeleteUnused)
	assert.True(t, cfg.Checks.UnusedDependency)
	assert.False(t, cfg.Checks.SortDependencies)
	assert.Equal(t, "memory", cfg.Analysis.Cache.Type)
	assert.Equal(t, FormatText, cfg.Reports.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromDir_MissingFile(t *testing.T) {
	cfg, err := LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.True(t, cfg.AutoCorrect)
}

func TestLoadConfigFromDir_File(t *testing.T) {
	dir := t.TempDir()
	content := `
deleteUnused: true
autoCorrect: false
ignoreUnusedFinding: [":core:testing"]
doNotCheck: [":legacy"]
hostToolVersion: 8.1.0
checks:
  sortDependencies: true
  redundantDependency: false
sort:
  dependencyComparators: ['.*kapt.*', '.*']
additionalCodeGenerators:
  - name: moshi
    generatorCoordinates: com.squareup.moshi:moshi-kotlin-codegen
    annotationNames: [com.squareup.moshi.JsonClass]
analysis:
  concurrency: 3
  cache:
    type: memory
    size: 10
    ttl: 10m
reports:
  format: json
  s3:
    bucket: reports
    usePathStyle: true
history:
  driver: postgres
  dsn: postgres://localhost/modcheck
webhooks:
  - url: https://hooks.example.com/modcheck
    secret: s3cret
    events: [run.failed]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".modcheck.yml"), []byte(content), 0o644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".modcheck.yml"), cfg.Path)
	assert.True(t, cfg.DeleteUnused)
	assert.False(t, cfg.AutoCorrect)
	assert.Equal(t, []string{":core:testing"}, cfg.IgnoreUnusedFinding)
	assert.Equal(t, []string{":legacy"}, cfg.DoNotCheck)
	assert.Equal(t, "8.1.0", cfg.HostToolVersion)

	// keys not in the file keep their defaults
	assert.True(t, cfg.Checks.SortDependencies)
	assert.False(t, cfg.Checks.RedundantDependency)
	assert.True(t, cfg.Checks.UnusedDependency)

	assert.Equal(t, 3, cfg.Analysis.Concurrency)
	assert.Equal(t, 10*time.Minute, cfg.Analysis.Cache.TTL)
	assert.Equal(t, FormatJSON, cfg.Reports.Format)
	assert.True(t, cfg.Reports.S3.Enabled())
	assert.True(t, cfg.Reports.S3.UsePathStyle)
	assert.Equal(t, "postgres", cfg.History.Driver)

	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, "s3cret", cfg.Webhooks[0].Secret)
	assert.Equal(t, []webhooks.EventType{webhooks.EventRunFailed}, cfg.Webhooks[0].Events)

	require.Len(t, cfg.AdditionalCodeGenerators, 1)
	g, ok := cfg.CodeGenerators().Lookup("com.squareup.moshi:moshi-kotlin-codegen:1.15.0")
	require.True(t, ok)
	assert.Equal(t, "moshi", g.Name)

	settings, err := cfg.Settings()
	require.NoError(t, err)
	assert.True(t, settings.Skips(":legacy"))
	assert.True(t, settings.IgnoresUnused(":core:testing"))
	assert.Len(t, settings.DependencyComparators, 2)
}

func TestLoadConfigFromDir_Precedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modcheck.yaml"), []byte("trace: true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".modcheck.yaml"), []byte("trace: false\n"), 0o644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "modcheck.yaml"), cfg.Path)
	assert.True(t, cfg.Trace)
}

func TestLoadConfigFromDir_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modcheck.yaml"), []byte("analysis:\n  concurrency: 2\n"), 0o644))

	t.Setenv("MODCHECK_CONCURRENCY", "6")
	t.Setenv("MODCHECK_AUTO_CORRECT", "false")
	t.Setenv("MODCHECK_REPORT_FORMAT", "github")
	t.Setenv("MODCHECK_CACHE_TYPE", "redis")
	t.Setenv("MODCHECK_REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("MODCHECK_CACHE_TTL", "5m")
	t.Setenv("MODCHECK_S3_ACCESS_KEY", "key")
	t.Setenv("MODCHECK_WEBHOOK_URL", "https://hooks.slack.com/services/x")
	t.Setenv("MODCHECK_WEBHOOK_FORMAT", "slack")

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Analysis.Concurrency)
	assert.False(t, cfg.AutoCorrect)
	assert.Equal(t, FormatGitHub, cfg.Reports.Format)
	assert.Equal(t, "redis", cfg.Analysis.Cache.Type)
	assert.Equal(t, 5*time.Minute, cfg.Analysis.Cache.TTL)
	assert.Equal(t, "key", cfg.Reports.S3.AccessKey)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, webhooks.FormatSlack, cfg.Webhooks[0].Format)
}

func TestLoadConfigFromDir_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modcheck.yaml"), []byte("checks: [not, a, map]\n"), 0o644))

	_, err := LoadConfigFromDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "negative concurrency", modify: func(c *Config) { c.Analysis.Concurrency = -1 }, wantErr: true},
		{name: "negative parse workers", modify: func(c *Config) { c.Analysis.ParseWorkers = -2 }, wantErr: true},
		{name: "unknown format", modify: func(c *Config) { c.Reports.Format = "xml" }, wantErr: true},
		{name: "unknown cache type", modify: func(c *Config) { c.Analysis.Cache.Type = "disk" }, wantErr: true},
		{name: "redis without url", modify: func(c *Config) { c.Analysis.Cache.Type = "redis" }, wantErr: true},
		{name: "redis with url", modify: func(c *Config) {
			c.Analysis.Cache.Type = "redis"
			c.Analysis.Cache.RedisURL = "redis://localhost:6379"
		}},
		{name: "no cache", modify: func(c *Config) { c.Analysis.Cache.Type = "none" }},
		{name: "unknown history driver", modify: func(c *Config) { c.History.Driver = "mysql" }, wantErr: true},
		{name: "invalid dependency comparator", modify: func(c *Config) { c.Sort.DependencyComparators = []string{"("} }, wantErr: true},
		{name: "invalid plugin comparator", modify: func(c *Config) { c.Sort.PluginComparators = []string{"[a-"} }, wantErr: true},
		{name: "generator without coordinates", modify: func(c *Config) {
			c.AdditionalCodeGenerators = append(c.AdditionalCodeGenerators, c.CodeGenerators()["com.google.dagger:dagger-compiler"])
			c.AdditionalCodeGenerators[0].GeneratorCoordinates = ""
		}, wantErr: true},
		{name: "webhook without url", modify: func(c *Config) { c.Webhooks = []webhooks.Webhook{{Format: "slack"}} }, wantErr: true},
		{name: "webhook with unknown format", modify: func(c *Config) {
			c.Webhooks = []webhooks.Webhook{{URL: "https://example.com", Format: "teams"}}
		}, wantErr: true},
		{name: "otel without endpoint", modify: func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
