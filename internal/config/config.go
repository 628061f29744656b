package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/prreviewer/internal/jobqueue"
	"github.com/prreviewer/internal/retry"
)

// EnvPrefix is stripped from environment variables; "__" separates levels,
// e.g. PRREVIEWER_GITHUB__TOKEN sets github.token.
const EnvPrefix = "PRREVIEWER_"

// Dedupe store drivers.
const (
	DedupeMemory   = "memory"
	DedupePostgres = "postgres"
	DedupeSQLite   = "sqlite"
)

// Queue modes.
const (
	QueueInline = "inline"
	QueueRiver  = "river"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	GitHub   GitHubConfig   `koanf:"github"`
	Reviewer ReviewerConfig `koanf:"reviewer"`
	Dedupe   DedupeConfig   `koanf:"dedupe"`
	Queue    QueueConfig    `koanf:"queue"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the webhook dispatcher.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	WebhookSecret string `koanf:"webhook_secret"`
	// EmbeddedWorkers runs River workers inside the serve process.
	EmbeddedWorkers bool `koanf:"embedded_workers"`
}

// GitHubConfig selects token or GitHub App authentication.
type GitHubConfig struct {
	Token             string        `koanf:"token"`
	AppID             int64         `koanf:"app_id"`
	InstallationID    int64         `koanf:"installation_id"`
	PrivateKeyPath    string        `koanf:"private_key_path"`
	BaseURL           string        `koanf:"base_url"`
	CheckName         string        `koanf:"check_name"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
}

// UsesApp reports whether GitHub App credentials are configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0 || g.InstallationID != 0 || g.PrivateKeyPath != ""
}

// ReviewerConfig configures the model and the per-file review fan-out.
type ReviewerConfig struct {
	Provider     string            `koanf:"provider"`
	Model        string            `koanf:"model"`
	APIKey       string            `koanf:"api_key"`
	BaseURL      string            `koanf:"base_url"`
	MaxTokens    int               `koanf:"max_tokens"`
	Temperature  float64           `koanf:"temperature"`
	MaxDiffChars int               `koanf:"max_diff_chars"`
	Concurrency  int               `koanf:"concurrency"`
	Timeout      time.Duration     `koanf:"timeout"`
	Retry        retry.RetryConfig `koanf:"retry"`
}

// RetryConfig returns the retry policy with transient-error classification.
func (r ReviewerConfig) RetryConfig() retry.RetryConfig {
	cfg := r.Retry
	cfg.Retryable = retry.IsRetryableError
	return cfg
}

// DedupeConfig selects the dedupe store.
type DedupeConfig struct {
	Driver string        `koanf:"driver"`
	DSN    string        `koanf:"dsn"`
	TTL    time.Duration `koanf:"ttl"`
}

// QueueConfig selects how tasks reach workers.
type QueueConfig struct {
	Mode                 string `koanf:"mode"`
	DatabaseURL          string `koanf:"database_url"`
	jobqueue.QueueConfig `koanf:",squash"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]interface{} {
	r := retry.LLMRetryConfig()
	q := jobqueue.DefaultQueueConfig()
	return map[string]interface{}{
		"server.port":             8080,
		"server.embedded_workers": true,

		"github.check_name":          "AI Code Review",
		"github.requests_per_second": 10.0,
		"github.timeout":             "30s",

		"reviewer.provider":          "claude",
		"reviewer.model":             "claude-haiku-4-5",
		"reviewer.max_tokens":        4096,
		"reviewer.max_diff_chars":    10000,
		"reviewer.concurrency":       4,
		"reviewer.timeout":           "10m",
		"reviewer.retry.max_retries": r.MaxRetries,
		"reviewer.retry.base_delay":  r.BaseDelay.String(),
		"reviewer.retry.max_delay":   r.MaxDelay.String(),
		"reviewer.retry.multiplier":  r.Multiplier,
		"reviewer.retry.jitter":      r.Jitter,
		"reviewer.retry.log_retries": r.LogRetries,

		"dedupe.driver": DedupeMemory,
		"dedupe.ttl":    "24h",

		"queue.mode":           QueueInline,
		"queue.max_workers":    q.MaxWorkers,
		"queue.max_attempts":   q.MaxAttempts,
		"queue.job_timeout":    q.JobTimeout.String(),
		"queue.unique_period":  q.UniquePeriod.String(),
		"queue.purge_interval": q.PurgeInterval.String(),
		"queue.inline_buffer":  q.InlineBuffer,

		"log.level":  "info",
		"log.format": "console",
	}
}

// LoadConfig loads defaults, then the TOML file, then the environment.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./prreviewer.toml", "$HOME/.prreviewer.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				break
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	return os.WriteFile(configPath, []byte(sampleConfig), 0o600)
}

const sampleConfig = `# prreviewer configuration
# Every key can be overridden from the environment, e.g.
# PRREVIEWER_GITHUB__TOKEN or PRREVIEWER_REVIEWER__API_KEY.

[server]
port = 8080
webhook_secret = "change-me"
embedded_workers = true

[github]
# Either a token...
token = "ghp_your_token"
# ...or GitHub App credentials.
# app_id = 12345
# installation_id = 67890
# private_key_path = "/etc/prreviewer/app.pem"
check_name = "AI Code Review"
requests_per_second = 10.0

[reviewer]
provider = "claude"          # claude, openai, gemini, ollama, langchain-claude
model = "claude-haiku-4-5"
api_key = "your-api-key"
max_diff_chars = 10000
concurrency = 4
timeout = "10m"

[reviewer.retry]
max_retries = 3
base_delay = "2s"
max_delay = "1m"

[dedupe]
driver = "memory"            # memory, postgres, sqlite
# dsn = "postgres://localhost/prreviewer?sslmode=disable"
ttl = "24h"

[queue]
mode = "inline"              # inline, river
# database_url = "postgres://localhost/prreviewer?sslmode=disable"
max_workers = 4
max_attempts = 1

[log]
level = "info"
format = "console"           # console, json
`

// Validate validates the configuration
func Validate(config *Config) error {
	var errs []error

	gh := config.GitHub
	switch {
	case gh.UsesApp():
		if gh.AppID == 0 || gh.InstallationID == 0 || gh.PrivateKeyPath == "" {
			errs = append(errs, errors.New("github app_id, installation_id and private_key_path must all be set"))
		}
	case gh.Token == "":
		errs = append(errs, errors.New("github token or GitHub App credentials are required"))
	}

	switch config.Reviewer.Provider {
	case "claude", "openai", "gemini", "langchain-claude":
		if config.Reviewer.APIKey == "" {
			errs = append(errs, fmt.Errorf("reviewer api_key is required for provider %s", config.Reviewer.Provider))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown reviewer provider %q", config.Reviewer.Provider))
	}
	if config.Reviewer.Concurrency < 1 {
		errs = append(errs, errors.New("reviewer concurrency must be at least 1"))
	}

	switch config.Dedupe.Driver {
	case DedupeMemory:
	case DedupePostgres:
		// An empty dsn falls back to DATABASE_URL.
	case DedupeSQLite:
		if config.Dedupe.DSN == "" {
			errs = append(errs, errors.New("dedupe dsn is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown dedupe driver %q", config.Dedupe.Driver))
	}
	if config.Dedupe.TTL <= 0 {
		errs = append(errs, errors.New("dedupe ttl must be positive"))
	}

	switch config.Queue.Mode {
	case QueueInline:
	case QueueRiver:
		if config.Queue.DatabaseURL == "" {
			errs = append(errs, errors.New("queue database_url is required for river mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue mode %q", config.Queue.Mode))
	}

	switch config.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", config.Log.Format))
	}

	return errors.Join(errs...)
}
