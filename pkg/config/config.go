package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/storage"
	"github.com/platinummonkey/modcheck/pkg/usage"
	"github.com/platinummonkey/modcheck/pkg/webhooks"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// FileNames are the settings files searched in the workspace root, in order.
var FileNames = []string{"modcheck.yaml", "modcheck.yml", ".modcheck.yaml", ".modcheck.yml"}

// Report formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatGitHub = "github"
)

// Config holds all settings of a run.
type Config struct {
	// DeleteUnused removes statements instead of commenting them out.
	DeleteUnused bool `yaml:"deleteUnused"`
	AutoCorrect  bool `yaml:"autoCorrect"`
	Trace        bool `yaml:"trace"`

	IgnoreUnusedFinding []string `yaml:"ignoreUnusedFinding"`
	DoNotCheck          []string `yaml:"doNotCheck"`
	HostToolVersion     string   `yaml:"hostToolVersion"`

	Checks                   linter.Checks         `yaml:"checks"`
	Sort                     SortConfig            `yaml:"sort"`
	AdditionalCodeGenerators []usage.CodeGenerator `yaml:"additionalCodeGenerators"`

	Analysis      AnalysisConfig      `yaml:"analysis"`
	Reports       ReportsConfig       `yaml:"reports"`
	History       HistoryConfig       `yaml:"history"`
	Observability ObservabilityConfig `yaml:"observability"`
	Webhooks      []webhooks.Webhook  `yaml:"webhooks"`

	// Path is the file the settings were read from, empty for defaults.
	Path string `yaml:"-"`
}

// SortConfig holds the ordered regex groups used by the sort rules.
type SortConfig struct {
	DependencyComparators []string `yaml:"dependencyComparators"`
	PluginComparators     []string `yaml:"pluginComparators"`
}

// AnalysisConfig sizes the scheduler, the parsers and the analysis cache.
type AnalysisConfig struct {
	Concurrency  int            `yaml:"concurrency"`
	ParseWorkers int            `yaml:"parseWorkers"`
	Cache        storage.Config `yaml:"cache"`
}

// ReportsConfig selects the report renderer and an optional S3 destination.
type ReportsConfig struct {
	Format string   `yaml:"format"`
	Output string   `yaml:"output"`
	S3     S3Config `yaml:"s3"`
}

// S3Config addresses a bucket for published reports.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"usePathStyle"`
	AccessKey    string `yaml:"-"`
	SecretKey    string `yaml:"-"`
}

// Enabled reports whether reports should be uploaded.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// HistoryConfig points at the run history database. An empty DSN disables history.
type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel     string `yaml:"logLevel"`
	LogFormat    string `yaml:"logFormat"`
	MetricsAddr  string `yaml:"metricsAddr"`
	OTelEnabled  bool   `yaml:"otelEnabled"`
	OTelEndpoint string `yaml:"otelEndpoint"`
	OTelInsecure bool   `yaml:"otelInsecure"`
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		AutoCorrect: true,
		Checks:      linter.DefaultChecks(),
		Analysis: AnalysisConfig{
			Cache: storage.DefaultConfig(),
		},
		Reports: ReportsConfig{Format: FormatText},
		History: HistoryConfig{Driver: "sqlite3"},
		Observability: ObservabilityConfig{
			LogLevel:     "info",
			LogFormat:    "text",
			OTelEndpoint: "localhost:4317",
			OTelInsecure: true,
		},
	}
}

// LoadConfigFromDir reads the first settings file found in dir, loads a .env file
// from the working directory and applies MODCHECK_* overrides. A missing settings
// file yields the defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	// a missing .env is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Path = path
		break
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes settings over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DeleteUnused = getEnvBool("MODCHECK_DELETE_UNUSED", c.DeleteUnused)
	c.AutoCorrect = getEnvBool("MODCHECK_AUTO_CORRECT", c.AutoCorrect)
	c.Trace = getEnvBool("MODCHECK_TRACE", c.Trace)
	c.HostToolVersion = getEnv("MODCHECK_HOST_TOOL_VERSION", c.HostToolVersion)

	c.Analysis.Concurrency = getEnvInt("MODCHECK_CONCURRENCY", c.Analysis.Concurrency)
	c.Analysis.ParseWorkers = getEnvInt("MODCHECK_PARSE_WORKERS", c.Analysis.ParseWorkers)
	c.Analysis.Cache.Type = getEnv("MODCHECK_CACHE_TYPE", c.Analysis.Cache.Type)
	c.Analysis.Cache.Size = getEnvInt("MODCHECK_CACHE_SIZE", c.Analysis.Cache.Size)
	c.Analysis.Cache.TTL = getEnvDuration("MODCHECK_CACHE_TTL", c.Analysis.Cache.TTL)
	c.Analysis.Cache.RedisURL = getEnv("MODCHECK_REDIS_URL", c.Analysis.Cache.RedisURL)

	c.Reports.Format = getEnv("MODCHECK_REPORT_FORMAT", c.Reports.Format)
	c.Reports.Output = getEnv("MODCHECK_REPORT_OUTPUT", c.Reports.Output)
	c.Reports.S3.Bucket = getEnv("MODCHECK_S3_BUCKET", c.Reports.S3.Bucket)
	c.Reports.S3.Prefix = getEnv("MODCHECK_S3_PREFIX", c.Reports.S3.Prefix)
	c.Reports.S3.Region = getEnv("MODCHECK_S3_REGION", c.Reports.S3.Region)
	c.Reports.S3.Endpoint = getEnv("MODCHECK_S3_ENDPOINT", c.Reports.S3.Endpoint)
	c.Reports.S3.UsePathStyle = getEnvBool("MODCHECK_S3_USE_PATH_STYLE", c.Reports.S3.UsePathStyle)
	c.Reports.S3.AccessKey = getEnv("MODCHECK_S3_ACCESS_KEY", c.Reports.S3.AccessKey)
	c.Reports.S3.SecretKey = getEnv("MODCHECK_S3_SECRET_KEY", c.Reports.S3.SecretKey)

	c.History.Driver = getEnv("MODCHECK_HISTORY_DRIVER", c.History.Driver)
	c.History.DSN = getEnv("MODCHECK_HISTORY_DSN", c.History.DSN)

	c.Observability.LogLevel = getEnv("MODCHECK_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("MODCHECK_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsAddr = getEnv("MODCHECK_METRICS_ADDR", c.Observability.MetricsAddr)
	c.Observability.OTelEnabled = getEnvBool("MODCHECK_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("MODCHECK_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelInsecure = getEnvBool("MODCHECK_OTEL_INSECURE", c.Observability.OTelInsecure)

	// a single hook can be added without a settings file
	if url := os.Getenv("MODCHECK_WEBHOOK_URL"); url != "" {
		c.Webhooks = append(c.Webhooks, webhooks.Webhook{
			URL:    url,
			Secret: os.Getenv("MODCHECK_WEBHOOK_SECRET"),
			Format: os.Getenv("MODCHECK_WEBHOOK_FORMAT"),
		})
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Analysis.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	if c.Analysis.ParseWorkers < 0 {
		return fmt.Errorf("%w: parse workers must not be negative", ErrInvalidConfig)
	}

	switch c.Analysis.Cache.Type {
	case "", "memory", "none":
	case "redis":
		if c.Analysis.Cache.RedisURL == "" {
			return fmt.Errorf("%w: redis URL is required for redis cache", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid cache type: %s (must be memory, redis, or none)", ErrInvalidConfig, c.Analysis.Cache.Type)
	}

	switch c.Reports.Format {
	case FormatText, FormatJSON, FormatGitHub:
	default:
		return fmt.Errorf("%w: invalid report format: %s (must be text, json, or github)", ErrInvalidConfig, c.Reports.Format)
	}

	switch c.History.Driver {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("%w: invalid history driver: %s (must be sqlite3 or postgres)", ErrInvalidConfig, c.History.Driver)
	}

	for _, patterns := range [][]string{c.Sort.DependencyComparators, c.Sort.PluginComparators} {
		for _, p := range patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("%w: invalid comparator %q: %v", ErrInvalidConfig, p, err)
			}
		}
	}

	for _, g := range c.AdditionalCodeGenerators {
		if g.GeneratorCoordinates == "" {
			return fmt.Errorf("%w: code generator %q has no coordinates", ErrInvalidConfig, g.Name)
		}
	}

	for i, h := range c.Webhooks {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("%w: webhooks[%d]: %v", ErrInvalidConfig, i, err)
		}
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("%w: OpenTelemetry endpoint is required when OTel is enabled", ErrInvalidConfig)
	}
	return nil
}

// Settings converts the rule-facing part of the configuration.
func (c *Config) Settings() (*linter.Settings, error) {
	return linter.NewSettings(
		linter.WithChecks(c.Checks),
		linter.WithIgnoreUnused(c.IgnoreUnusedFinding...),
		linter.WithDoNotCheck(c.DoNotCheck...),
		linter.WithHostToolVersion(c.HostToolVersion),
		linter.WithComparators(c.Sort.DependencyComparators, c.Sort.PluginComparators),
	)
}

// CodeGenerators merges the configured generators with the defaults.
func (c *Config) CodeGenerators() usage.CodeGenerators {
	return usage.NewCodeGenerators(c.AdditionalCodeGenerators...)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
