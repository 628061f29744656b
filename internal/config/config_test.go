package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prreviewer.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.EmbeddedWorkers)
	assert.Equal(t, "AI Code Review", cfg.GitHub.CheckName)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, "claude", cfg.Reviewer.Provider)
	assert.Equal(t, 10000, cfg.Reviewer.MaxDiffChars)
	assert.Equal(t, 10*time.Minute, cfg.Reviewer.Timeout)
	assert.Equal(t, 3, cfg.Reviewer.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Reviewer.Retry.BaseDelay)
	assert.Equal(t, DedupeMemory, cfg.Dedupe.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Dedupe.TTL)
	assert.Equal(t, QueueInline, cfg.Queue.Mode)
	assert.Equal(t, 1, cfg.Queue.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Queue.UniquePeriod)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[github]
token = "from-file"

[reviewer]
provider = "openai"
concurrency = 8

[dedupe]
driver = "sqlite"
dsn = "file:dedupe.db"
ttl = "1h"

[queue]
mode = "river"
max_workers = 12
`)
	t.Setenv("PRREVIEWER_GITHUB__TOKEN", "from-env")
	t.Setenv("PRREVIEWER_QUEUE__DATABASE_URL", "postgres://localhost/q")
	t.Setenv("PRREVIEWER_REVIEWER__API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GitHub.Token)
	assert.Equal(t, "openai", cfg.Reviewer.Provider)
	assert.Equal(t, "sk-test", cfg.Reviewer.APIKey)
	assert.Equal(t, 8, cfg.Reviewer.Concurrency)
	assert.Equal(t, time.Hour, cfg.Dedupe.TTL)
	assert.Equal(t, QueueRiver, cfg.Queue.Mode)
	assert.Equal(t, "postgres://localhost/q", cfg.Queue.DatabaseURL)
	assert.Equal(t, 12, cfg.Queue.MaxWorkers)
	require.NoError(t, Validate(cfg))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prreviewer.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ghp_your_token", cfg.GitHub.Token)
	require.NoError(t, Validate(cfg))

	assert.Error(t, InitConfig(path), "existing file must not be overwritten")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, ""))
		require.NoError(t, err)
		cfg.GitHub.Token = "t"
		cfg.Reviewer.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no credentials", mutate: func(c *Config) { c.GitHub.Token = "" }, wantErr: "github token"},
		{name: "partial app", mutate: func(c *Config) { c.GitHub.AppID = 1 }, wantErr: "app_id"},
		{name: "full app", mutate: func(c *Config) {
			c.GitHub.Token = ""
			c.GitHub.AppID = 1
			c.GitHub.InstallationID = 2
			c.GitHub.PrivateKeyPath = "k.pem"
		}},
		{name: "missing api key", mutate: func(c *Config) { c.Reviewer.APIKey = "" }, wantErr: "api_key"},
		{name: "ollama needs no key", mutate: func(c *Config) {
			c.Reviewer.Provider = "ollama"
			c.Reviewer.APIKey = ""
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.Reviewer.Provider = "bard" }, wantErr: "unknown reviewer provider"},
		{name: "sqlite without dsn", mutate: func(c *Config) { c.Dedupe.Driver = DedupeSQLite }, wantErr: "dsn"},
		{name: "river without database", mutate: func(c *Config) { c.Queue.Mode = QueueRiver }, wantErr: "database_url"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReviewerRetryConfigClassifiesErrors(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Nil(t, cfg.Reviewer.Retry.Retryable)
	assert.NotNil(t, cfg.Reviewer.RetryConfig().Retryable)
}
